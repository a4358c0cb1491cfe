// Package engines holds helpers shared by the bundled environment engines.
// Each engine lives in its own subpackage and registers itself into a
// plugin table under lib://env/<name>.
package engines

import (
	"os"
	"path/filepath"

	"github.com/e5r/devcom/internal/deverr"
	"github.com/e5r/devcom/internal/environment"
	"github.com/e5r/devcom/internal/platform"
)

// ModuleName is the library name an environment engine registers under.
func ModuleName(env string) string { return "env/" + env }

// HostFacts returns the platform and architecture an engine targets.
// A non-empty opts.Arch overrides the host architecture.
func HostFacts(tc *environment.ToolContext, opts environment.Options) (platform.ToolSet, string, error) {
	if tc == nil || tc.Tools == nil || tc.Fetcher == nil {
		return nil, "", deverr.ContractViolation("environment engine initialized without a tool context")
	}
	arch := tc.Tools.Arch()
	if opts.Arch != "" {
		if !platform.ValidArch(opts.Arch) {
			return nil, "", deverr.UnsupportedPlatform("unknown architecture %q", opts.Arch)
		}
		arch = opts.Arch
	}
	return tc.Tools, arch, nil
}

// MoveContents moves every entry of src into dst, which must exist.
func MoveContents(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return deverr.FileSystem("reading %s", src).Wrap(err)
	}
	for _, e := range entries {
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dst, e.Name())
		if err := os.Rename(from, to); err != nil {
			return deverr.FileSystem("moving %s", e.Name()).Wrap(err)
		}
	}
	return nil
}

// SingleDir returns the only directory inside dir, the usual root of an
// extracted release archive.
func SingleDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", deverr.FileSystem("reading %s", dir).Wrap(err)
	}
	var found string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if found != "" {
			return "", deverr.FileSystem("%s holds more than one top-level directory", dir)
		}
		found = filepath.Join(dir, e.Name())
	}
	if found == "" {
		return "", deverr.FileSystem("%s holds no top-level directory", dir)
	}
	return found, nil
}

// IsFile reports whether path exists and is a regular file.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
