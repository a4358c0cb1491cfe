package environment

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"reflect"

	"github.com/charmbracelet/log"

	"github.com/e5r/devcom/internal/deverr"
	"github.com/e5r/devcom/internal/download"
	"github.com/e5r/devcom/internal/platform"
	"github.com/e5r/devcom/internal/userdata"
)

// ToolContext is what the host hands an engine on Init.
type ToolContext struct {
	Tools   platform.ToolSet
	Fetcher download.Fetcher
	Layout  userdata.Layout
	Logger  *log.Logger
	Out     io.Writer
}

// Options carries per-invocation engine options.
type Options struct {
	// Arch overrides the host architecture.
	Arch string
}

// VersionDescriptor is one release as reported by an engine.
type VersionDescriptor struct {
	Version   string              `json:"version"`
	Platforms map[string][]string `json:"platforms"`
	Metadata  json.RawMessage     `json:"metadata,omitempty"`
}

// Supports reports whether the release ships for platform/arch.
func (d VersionDescriptor) Supports(platform, arch string) bool {
	for _, a := range d.Platforms[platform] {
		if a == arch {
			return true
		}
	}
	return false
}

// VersionCache is the release list of one environment, newest first.
type VersionCache struct {
	Environment string              `json:"environment"`
	Versions    []VersionDescriptor `json:"versions"`
}

// Engine is the base every environment plugin implements. The remaining
// capabilities are separate interfaces, checked when an action needs them.
type Engine interface {
	Name() string
	Init(tc *ToolContext, opts Options) error
}

// VersionLister enumerates the releases of an environment.
type VersionLister interface {
	GetVersions(ctx context.Context) (*VersionCache, error)
}

// VersionValidator filters releases the engine can install.
type VersionValidator interface {
	VersionIsValid(d VersionDescriptor) bool
}

// VersionNormalizer maps a cached version to its installable identifier.
type VersionNormalizer interface {
	GetFullVersionNumber(version string) string
}

// DownloadLister returns the artifact URLs of a version.
type DownloadLister interface {
	GetDownloadFileList(version string) ([]string, error)
}

// Installer populates installDir from extracted artifacts.
type Installer interface {
	InstallFiles(ctx context.Context, downloadDir, extractDir, installDir, version string) error
}

// InstallVerifier checks an install directory.
type InstallVerifier interface {
	SuccessfullyInstalled(version, installDir string) bool
}

// ActivationSwapper is optional; engines without it support swapping.
type ActivationSwapper interface {
	SupportsActivationSwap() bool
}

// Require returns e as capability T, or a ContractViolation naming it.
func Require[T any](e Engine) (T, error) {
	if c, ok := e.(T); ok {
		return c, nil
	}
	var zero T
	name := reflect.TypeOf((*T)(nil)).Elem().Name()
	return zero, deverr.ContractViolation("environment engine %q does not implement %s", e.Name(), name)
}

// SupportsSwap reports whether a reinstall may swap directories.
func SupportsSwap(e Engine) bool {
	if s, ok := e.(ActivationSwapper); ok {
		return s.SupportsActivationSwap()
	}
	return true
}

// Installable is the full capability set the install pipeline needs.
type Installable interface {
	Engine
	DownloadLister
	Installer
	InstallVerifier
}

// RequireInstallable checks every capability the install pipeline uses.
func RequireInstallable(e Engine) (Installable, error) {
	if _, err := Require[DownloadLister](e); err != nil {
		return nil, err
	}
	if _, err := Require[Installer](e); err != nil {
		return nil, err
	}
	if _, err := Require[InstallVerifier](e); err != nil {
		return nil, err
	}
	return e.(Installable), nil
}

// PathProvider is optional; it names the directory holding an installed
// version's executables. Engines without it use <installDir>/bin.
type PathProvider interface {
	BinDir(installDir string) string
}

// BinDir returns the executable directory of installDir for e.
func BinDir(e Engine, installDir string) string {
	if p, ok := e.(PathProvider); ok {
		return p.BinDir(installDir)
	}
	return filepath.Join(installDir, "bin")
}
