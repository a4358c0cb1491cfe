package environment

import (
	"github.com/e5r/devcom/internal/deverr"
)

// Resolve picks the newest release in versions (sorted newest first) that
// satisfies request on platform/arch and is accepted by validator, then
// maps it through normalizer.
//
// Candidates are compared component by component against the request.
// A requested component above the candidate's ends the search, since
// every later candidate is lower. A candidate component above the
// requested one skips that candidate.
func Resolve(versions []VersionDescriptor, request, platform, arch string, validator VersionValidator, normalizer VersionNormalizer) (string, error) {
	req, err := ParseRequest(request)
	if err != nil {
		return "", deverr.NotFound("invalid version request %q", request).Wrap(err)
	}

	for _, d := range versions {
		v, err := ParseVersion(d.Version)
		if err != nil {
			continue
		}
		c := v.Components()

		stop, skip := false, false
		for i, want := range req {
			if want > c[i] {
				stop = true
				break
			}
			if c[i] > want {
				skip = true
				break
			}
		}
		if stop {
			break
		}
		if skip {
			continue
		}

		if d.Supports(platform, arch) && validator.VersionIsValid(d) {
			return normalizer.GetFullVersionNumber(d.Version), nil
		}
	}
	return "", deverr.NotFound("no version matching %q for %s/%s", request, platform, arch)
}

// ResolveFor resolves with e's own validator and normalizer.
func ResolveFor(e Engine, versions []VersionDescriptor, request, platform, arch string) (string, error) {
	validator, err := Require[VersionValidator](e)
	if err != nil {
		return "", err
	}
	normalizer, err := Require[VersionNormalizer](e)
	if err != nil {
		return "", err
	}
	return Resolve(versions, request, platform, arch, validator, normalizer)
}
