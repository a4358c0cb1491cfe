package platform

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// sidecarExt marks the file that records a link target where native
// symlinks are unavailable.
const sidecarExt = ".target"

// ReplaceSymlink points link at target, replacing any previous link.
// On Windows without developer mode the target is recorded in a .target
// sidecar instead, which ReadSymlinkTarget understands.
func ReplaceSymlink(target, link string) error {
	if err := RemoveSymlink(link); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing previous link %s: %w", link, err)
	}

	err := os.Symlink(target, link)
	if err == nil || runtime.GOOS != "windows" {
		return err
	}

	if werr := os.WriteFile(link+sidecarExt, []byte(target), 0644); werr != nil {
		return fmt.Errorf("symlink fallback failed: %w", werr)
	}
	return nil
}

// RemoveSymlink removes a symlink and its sidecar, if any.
func RemoveSymlink(path string) error {
	err := os.Remove(path)
	if serr := os.Remove(path + sidecarExt); serr == nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// ReadSymlinkTarget returns the target of a symlink.
// On Windows, if os.Readlink fails, it reads the .target sidecar.
func ReadSymlinkTarget(path string) (string, error) {
	target, err := os.Readlink(path)
	if err == nil {
		return target, nil
	}

	if runtime.GOOS != "windows" {
		return "", err
	}

	data, readErr := os.ReadFile(path + sidecarExt)
	if readErr != nil {
		return "", fmt.Errorf("readlink failed and no %s sidecar found: %w", sidecarExt, err)
	}
	return strings.TrimSpace(string(data)), nil
}
