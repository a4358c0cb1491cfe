package install

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/e5r/devcom/internal/deverr"
	"github.com/e5r/devcom/internal/environment"
	"github.com/e5r/devcom/internal/platform"
	"github.com/e5r/devcom/internal/userdata"
)

// Installed lists the installed versions of env, newest first.
// Staging directories and non-version entries are ignored.
func Installed(layout userdata.Layout, env string) ([]environment.Version, error) {
	entries, err := os.ReadDir(layout.EnvironmentPath(env))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, deverr.FileSystem("listing %s installs", env).Wrap(err)
	}

	var out []environment.Version
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, ".") ||
			strings.HasSuffix(name, newSuffix) || strings.HasSuffix(name, oldSuffix) {
			continue
		}
		v, err := environment.ParseVersion(name)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Compare(out[j]) > 0 })
	return out, nil
}

// IsInstalled reports whether version of env has a populated install directory.
func IsInstalled(layout userdata.Layout, env, version string) bool {
	st, err := inspectDir(DirectoriesFor(layout, env, version).Path)
	return err == nil && st == dirPopulated
}

// Uninstall removes version of env with its staging leftovers. The
// current link is dropped when it points at the removed version.
func Uninstall(layout userdata.Layout, env, version string) error {
	dirs := DirectoriesFor(layout, env, version)
	if !exists(dirs.Path) {
		return deverr.NotFound("%s %s is not installed", env, version)
	}

	current := layout.CurrentPath(env)
	if target, err := platform.ReadSymlinkTarget(current); err == nil && filepath.Clean(target) == filepath.Clean(dirs.Path) {
		if err := platform.RemoveSymlink(current); err != nil {
			return deverr.FileSystem("removing %s", current).Wrap(err)
		}
	}

	for _, p := range []string{dirs.Path, dirs.PathNew, dirs.PathOld} {
		if err := os.RemoveAll(p); err != nil {
			return deverr.FileSystem("removing %s", p).Wrap(err)
		}
	}
	return nil
}
