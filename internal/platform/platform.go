package platform

import (
	"runtime"

	"github.com/e5r/devcom/internal/deverr"
)

// Platform names as used in version descriptors.
const (
	Windows = "win"
	Linux   = "linux"
	Darwin  = "darwin"
)

// Architecture names as used in version descriptors.
const (
	X64   = "x64"
	X86   = "x86"
	ARM64 = "arm64"
)

// ToolSet is the per-OS set of host facts engines depend on.
type ToolSet interface {
	Platform() string
	Arch() string
	// Executable returns the file name of a program on this OS.
	Executable(name string) string
	// ArchiveExt is the preferred distribution archive extension.
	ArchiveExt() string
}

type unixTools struct {
	platform string
	arch     string
}

func (u unixTools) Platform() string              { return u.platform }
func (u unixTools) Arch() string                  { return u.arch }
func (u unixTools) Executable(name string) string { return name }
func (u unixTools) ArchiveExt() string            { return ".tar.gz" }

type windowsTools struct {
	arch string
}

func (w windowsTools) Platform() string              { return Windows }
func (w windowsTools) Arch() string                  { return w.arch }
func (w windowsTools) Executable(name string) string { return name + ".exe" }
func (w windowsTools) ArchiveExt() string            { return ".zip" }

// Detect returns the ToolSet for the running host.
func Detect() (ToolSet, error) {
	return New(runtime.GOOS, runtime.GOARCH)
}

// New returns the ToolSet for goos/goarch.
func New(goos, goarch string) (ToolSet, error) {
	arch, err := archName(goarch)
	if err != nil {
		return nil, err
	}
	switch goos {
	case "windows":
		return windowsTools{arch: arch}, nil
	case "linux":
		return unixTools{platform: Linux, arch: arch}, nil
	case "darwin":
		return unixTools{platform: Darwin, arch: arch}, nil
	default:
		return nil, deverr.UnsupportedPlatform("unsupported operating system %q", goos)
	}
}

// Fixed returns a ToolSet reporting the given names. The operating system
// conventions follow the platform name.
func Fixed(platform, arch string) ToolSet {
	if platform == Windows {
		return windowsTools{arch: arch}
	}
	return unixTools{platform: platform, arch: arch}
}

func archName(goarch string) (string, error) {
	switch goarch {
	case "amd64":
		return X64, nil
	case "386":
		return X86, nil
	case "arm64":
		return ARM64, nil
	default:
		return "", deverr.UnsupportedPlatform("unsupported architecture %q", goarch)
	}
}

// ValidArch reports whether arch is one of the known architecture names.
func ValidArch(arch string) bool {
	return arch == X64 || arch == X86 || arch == ARM64
}
