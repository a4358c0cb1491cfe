package environment

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Latest is the request that matches the newest release.
const Latest = "latest"

// Version is a release number of up to three numeric components.
type Version struct {
	v     *semver.Version
	parts int
}

// ParseVersion parses "1", "1.2" or "1.2.3", with an optional "v" prefix.
// Pre-release and build suffixes are rejected.
func ParseVersion(s string) (Version, error) {
	core := strings.TrimPrefix(strings.TrimSpace(s), "v")
	if core == "" {
		return Version{}, fmt.Errorf("empty version")
	}
	parts := strings.Split(core, ".")
	if len(parts) > 3 {
		return Version{}, fmt.Errorf("version %q has more than three components", s)
	}
	for _, p := range parts {
		if p == "" || strings.Trim(p, "0123456789") != "" {
			return Version{}, fmt.Errorf("version %q is not numeric", s)
		}
	}
	v, err := semver.NewVersion(core)
	if err != nil {
		return Version{}, fmt.Errorf("parsing version %q: %w", s, err)
	}
	return Version{v: v, parts: len(parts)}, nil
}

// Parts is the number of components given.
func (v Version) Parts() int { return v.parts }

// Components returns major, minor and patch; missing ones are 0.
func (v Version) Components() [3]int {
	if v.v == nil {
		return [3]int{}
	}
	return [3]int{int(v.v.Major()), int(v.v.Minor()), int(v.v.Patch())}
}

// Compare returns -1, 0 or 1. Missing components compare as 0.
func (v Version) Compare(o Version) int {
	a, b := v.Components(), o.Components()
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

// String returns the version as given, without a "v" prefix.
func (v Version) String() string {
	c := v.Components()
	out := make([]string, 0, v.parts)
	for i := 0; i < v.parts; i++ {
		out = append(out, fmt.Sprint(c[i]))
	}
	return strings.Join(out, ".")
}

// Request is a parsed version request: the components the user gave,
// or none for "latest".
type Request []int

// ParseRequest parses "latest" or up to three integer components.
func ParseRequest(s string) (Request, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, Latest) {
		return Request{}, nil
	}
	v, err := ParseVersion(s)
	if err != nil {
		return nil, err
	}
	c := v.Components()
	return Request(c[:v.Parts()]), nil
}
