package userdata

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/e5r/devcom/internal/branding"
)

// Directory and file name constants for the user root convention.
const (
	RegistryFile    = "registry.json"
	ConfigFile      = "config.yaml"
	EnvironmentsDir = "environments"
	EnvDir          = "env"
	BinDir          = "bin"
	LibDir          = "lib"
	DocDir          = "doc"
	VersionsFile    = "versions.json"
	CurrentLink     = "current"
)

// Permission constants.
const (
	DirPermNormal  os.FileMode = 0755
	FilePermNormal os.FileMode = 0644
	FilePermExec   os.FileMode = 0755
)

// GetRoot returns the user root directory. It checks the DEV_HOME
// environment variable first, then falls back to ~/.dev.
func GetRoot() (string, error) {
	if v := os.Getenv(branding.EnvVar("HOME")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, branding.HomeDir()), nil
}

// Layout resolves every path under one user root.
type Layout struct {
	Root string
}

// NewLayout returns the layout for the default user root.
func NewLayout() (Layout, error) {
	root, err := GetRoot()
	if err != nil {
		return Layout{}, err
	}
	return Layout{Root: root}, nil
}

// RegistryPath returns <root>/registry.json.
func (l Layout) RegistryPath() string { return filepath.Join(l.Root, RegistryFile) }

// LockPath returns <root>/registry.<scope>.lock.json.
func (l Layout) LockPath(scope string) string {
	return filepath.Join(l.Root, "registry."+scope+".lock.json")
}

// ConfigPath returns <root>/config.yaml.
func (l Layout) ConfigPath() string { return filepath.Join(l.Root, ConfigFile) }

// ResourcePath maps a root-relative, slash-separated key such as
// "lib/cmd/registry.js" to its location on disk.
func (l Layout) ResourcePath(key string) string {
	return filepath.Join(l.Root, filepath.FromSlash(key))
}

// BinPath returns <root>/bin.
func (l Layout) BinPath() string { return filepath.Join(l.Root, BinDir) }

// EnvironmentPath returns <root>/environments/<env>.
func (l Layout) EnvironmentPath(env string) string {
	return filepath.Join(l.Root, EnvironmentsDir, env)
}

// VersionCachePath returns <root>/environments/<env>/versions.json.
func (l Layout) VersionCachePath(env string) string {
	return filepath.Join(l.EnvironmentPath(env), VersionsFile)
}

// CurrentPath returns <root>/environments/<env>/current.
func (l Layout) CurrentPath(env string) string {
	return filepath.Join(l.EnvironmentPath(env), CurrentLink)
}

// EnvFilePath returns <root>/env/<env>.env.
func (l Layout) EnvFilePath(env string) string {
	return filepath.Join(l.Root, EnvDir, env+".env")
}

// EnsureRoot creates the user root if it does not exist.
func (l Layout) EnsureRoot() error {
	if err := os.MkdirAll(l.Root, DirPermNormal); err != nil {
		return fmt.Errorf("creating user root %s: %w", l.Root, err)
	}
	return nil
}
