package install

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/e5r/devcom/internal/deverr"
	"github.com/e5r/devcom/internal/userdata"
)

// Staging suffixes next to an install directory.
const (
	newSuffix = ".new"
	oldSuffix = ".old"
)

// Directories are the paths one version install owns.
type Directories struct {
	Path    string
	PathNew string
	PathOld string
}

// DirectoriesFor returns the directories of env at version.
func DirectoriesFor(layout userdata.Layout, env, version string) Directories {
	p := filepath.Join(layout.EnvironmentPath(env), version)
	return Directories{Path: p, PathNew: p + newSuffix, PathOld: p + oldSuffix}
}

// dirState classifies a path expected to be a directory.
type dirState int

const (
	dirAbsent dirState = iota
	dirEmpty
	dirPopulated
)

func inspectDir(path string) (dirState, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return dirAbsent, nil
	}
	if err != nil {
		return dirAbsent, deverr.FileSystem("inspecting %s", path).Wrap(err)
	}
	if !info.IsDir() {
		return dirAbsent, deverr.FileSystem("%s exists and is not a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return dirAbsent, deverr.FileSystem("opening %s", path).Wrap(err)
	}
	defer f.Close()
	if _, err := f.Readdirnames(1); errors.Is(err, io.EOF) {
		return dirEmpty, nil
	} else if err != nil {
		return dirAbsent, deverr.FileSystem("reading %s", path).Wrap(err)
	}
	return dirPopulated, nil
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
