// Package branding provides compile-time identity values for the CLI.
//
// The values live in branding.yaml next to this file and are baked into the
// binary with //go:embed, so a fork only has to edit the YAML.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName         string       `yaml:"cli_name"`
	DisplayName     string       `yaml:"display_name"`
	Description     string       `yaml:"description"`
	HomeDir         string       `yaml:"home_dir"`
	EnvPrefix       string       `yaml:"env_prefix"`
	GoModule        string       `yaml:"go_module"`
	DefaultScope    string       `yaml:"default_scope"`
	DefaultRegistry GitHubSource `yaml:"default_registry"`
}

// GitHubSource identifies the repository backing the default registry scope.
type GitHubSource struct {
	Owner      string `yaml:"owner"`
	Repository string `yaml:"repository"`
	Branch     string `yaml:"branch"`
	Path       string `yaml:"path"`
}

func load() {
	once.Do(func() {
		// Hard defaults in case the embedded file is missing/empty.
		defaults = brand{
			CLIName:      "dev",
			DisplayName:  "E5R Dev",
			Description:  "Development environment manager",
			HomeDir:      ".dev",
			EnvPrefix:    "DEV",
			GoModule:     "github.com/e5r/devcom",
			DefaultScope: "default",
			DefaultRegistry: GitHubSource{
				Owner:      "e5r",
				Repository: "devcom",
				Branch:     "develop",
				Path:       "dist",
			},
		}
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "dev").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name.
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".dev").
func HomeDir() string { load(); return defaults.HomeDir }

// EnvPrefix returns the environment variable prefix (e.g., "DEV").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// DefaultScope returns the name of the scope seeded into a fresh registry.
func DefaultScope() string { load(); return defaults.DefaultScope }

// DefaultRegistry returns the GitHub source of the default scope.
func DefaultRegistry() GitHubSource { load(); return defaults.DefaultRegistry }

// EnvVar returns a fully qualified env var name, e.g., EnvVar("HOME") → "DEV_HOME".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
