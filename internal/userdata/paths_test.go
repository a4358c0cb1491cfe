package userdata

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetRoot_EnvOverride(t *testing.T) {
	t.Setenv("DEV_HOME", "/tmp/test-dev")
	root, err := GetRoot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root != "/tmp/test-dev" {
		t.Errorf("expected /tmp/test-dev, got %s", root)
	}
}

func TestGetRoot_Default(t *testing.T) {
	t.Setenv("DEV_HOME", "")
	root, err := GetRoot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".dev")
	if root != expected {
		t.Errorf("expected %s, got %s", expected, root)
	}
}

func TestLayoutPaths(t *testing.T) {
	l := Layout{Root: "/r"}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"registry", l.RegistryPath(), "/r/registry.json"},
		{"lock", l.LockPath("default"), "/r/registry.default.lock.json"},
		{"config", l.ConfigPath(), "/r/config.yaml"},
		{"resource", l.ResourcePath("lib/cmd/registry.js"), filepath.FromSlash("/r/lib/cmd/registry.js")},
		{"bin", l.BinPath(), "/r/bin"},
		{"environment", l.EnvironmentPath("node"), "/r/environments/node"},
		{"versions", l.VersionCachePath("node"), "/r/environments/node/versions.json"},
		{"current", l.CurrentPath("go"), "/r/environments/go/current"},
		{"env file", l.EnvFilePath("node"), "/r/env/node.env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != filepath.FromSlash(tt.want) {
				t.Errorf("got %s, want %s", tt.got, filepath.FromSlash(tt.want))
			}
		})
	}
}

func TestEnsureRoot(t *testing.T) {
	l := Layout{Root: filepath.Join(t.TempDir(), "nested", ".dev")}
	if err := l.EnsureRoot(); err != nil {
		t.Fatalf("EnsureRoot: %v", err)
	}
	if info, err := os.Stat(l.Root); err != nil || !info.IsDir() {
		t.Errorf("root not created: %v", err)
	}
}
