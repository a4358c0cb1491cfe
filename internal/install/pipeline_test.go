package install

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/e5r/devcom/internal/deverr"
	"github.com/e5r/devcom/internal/environment"
	"github.com/e5r/devcom/internal/userdata"
)

type fakeFetcher struct {
	bodies map[string]string
	urls   []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	body, ok := f.bodies[url]
	if !ok {
		return nil, deverr.Network("fetching %s: unexpected status 404 Not Found", url)
	}
	return []byte(body), nil
}

func (f *fakeFetcher) FetchFile(ctx context.Context, url, dest string) error {
	f.urls = append(f.urls, url)
	data, err := f.Fetch(ctx, url)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

// toolEngine installs a single plain file named tool.txt.
type toolEngine struct {
	noSwap      bool
	failInstall bool
	failVerify  bool
}

func (e *toolEngine) Name() string { return "tool" }
func (e *toolEngine) Init(*environment.ToolContext, environment.Options) error { return nil }

func (e *toolEngine) GetDownloadFileList(version string) ([]string, error) {
	return []string{"https://dl.example.com/" + version + "/tool.txt"}, nil
}

func (e *toolEngine) InstallFiles(_ context.Context, _, extractDir, installDir, version string) error {
	if e.failInstall {
		return errors.New("disk full")
	}
	data, err := os.ReadFile(filepath.Join(extractDir, "tool.txt", "tool.txt"))
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(installDir, "tool.txt"), data, 0o644)
}

func (e *toolEngine) SuccessfullyInstalled(_, installDir string) bool {
	if e.failVerify {
		return false
	}
	_, err := os.Stat(filepath.Join(installDir, "tool.txt"))
	return err == nil
}

func (e *toolEngine) SupportsActivationSwap() bool { return !e.noSwap }

type listOnlyEngine struct{}

func (listOnlyEngine) Name() string { return "partial" }
func (listOnlyEngine) Init(*environment.ToolContext, environment.Options) error { return nil }
func (listOnlyEngine) GetDownloadFileList(string) ([]string, error) { return nil, nil }

func newPipeline(t *testing.T, e environment.Engine, bodies map[string]string) (*Pipeline, userdata.Layout, *fakeFetcher) {
	t.Helper()
	layout := userdata.Layout{Root: t.TempDir()}
	fetcher := &fakeFetcher{bodies: bodies}
	p, err := NewPipeline(e, fetcher, layout, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p, layout, fetcher
}

func recordStates(p *Pipeline) *[]State {
	var states []State
	p.OnTransition = func(_, to State) { states = append(states, to) }
	return &states
}

// envEntries lists the environment directory, which must hold nothing
// but the given names after an install settles.
func envEntries(t *testing.T, layout userdata.Layout, env string) []string {
	t.Helper()
	entries, err := os.ReadDir(layout.EnvironmentPath(env))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestFreshInstall(t *testing.T) {
	p, layout, fetcher := newPipeline(t, &toolEngine{}, map[string]string{
		"https://dl.example.com/1.2.3/tool.txt": "v1",
	})
	states := recordStates(p)

	res, err := p.Install(context.Background(), "1.2.3")
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if res.Mode != Fresh {
		t.Errorf("Mode = %v, want fresh", res.Mode)
	}

	data, err := os.ReadFile(filepath.Join(res.Dirs.Path, "tool.txt"))
	if err != nil || string(data) != "v1" {
		t.Fatalf("installed file = %q, %v", data, err)
	}

	want := []State{Downloading, Extracting, Installing, Activated}
	if !equalStates(*states, want) {
		t.Errorf("states = %v, want %v", *states, want)
	}
	if p.State() != Activated {
		t.Errorf("State() = %v", p.State())
	}
	if len(fetcher.urls) != 1 {
		t.Errorf("fetched %v", fetcher.urls)
	}
	if names := envEntries(t, layout, "tool"); len(names) != 1 || names[0] != "1.2.3" {
		t.Errorf("environment dir = %v, want only the install", names)
	}
}

func TestFreshInstallRollbackRemovesTarget(t *testing.T) {
	p, layout, _ := newPipeline(t, &toolEngine{failInstall: true}, map[string]string{
		"https://dl.example.com/1.0.0/tool.txt": "v1",
	})
	states := recordStates(p)

	_, err := p.Install(context.Background(), "1.0.0")
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("Install err = %v, want the engine failure", err)
	}

	want := []State{Downloading, Extracting, Installing, RollingBack, Failed}
	if !equalStates(*states, want) {
		t.Errorf("states = %v, want %v", *states, want)
	}
	if names := envEntries(t, layout, "tool"); len(names) != 0 {
		t.Errorf("environment dir = %v, want empty", names)
	}
}

func TestDownloadFailureKeepsOriginalError(t *testing.T) {
	p, layout, _ := newPipeline(t, &toolEngine{}, nil)

	_, err := p.Install(context.Background(), "2.0.0")
	if !errors.Is(err, deverr.ErrNetwork) {
		t.Fatalf("Install err = %v, want network error", err)
	}
	if p.State() != Failed {
		t.Errorf("State() = %v, want failed", p.State())
	}
	if exists(DirectoriesFor(layout, "tool", "2.0.0").Path) {
		t.Error("target left behind after rollback")
	}
}

func TestAtomicReinstall(t *testing.T) {
	bodies := map[string]string{"https://dl.example.com/1.0.0/tool.txt": "first"}
	p, layout, _ := newPipeline(t, &toolEngine{}, bodies)
	if _, err := p.Install(context.Background(), "1.0.0"); err != nil {
		t.Fatalf("first Install: %v", err)
	}

	bodies["https://dl.example.com/1.0.0/tool.txt"] = "second"
	res, err := p.Install(context.Background(), "1.0.0")
	if err != nil {
		t.Fatalf("reinstall: %v", err)
	}
	if res.Mode != Reinstall {
		t.Errorf("Mode = %v, want reinstall", res.Mode)
	}
	data, _ := os.ReadFile(filepath.Join(res.Dirs.Path, "tool.txt"))
	if string(data) != "second" {
		t.Errorf("installed file = %q, want second", data)
	}
	if exists(res.Dirs.PathNew) || exists(res.Dirs.PathOld) {
		t.Error("staging directories left behind")
	}
	if names := envEntries(t, layout, "tool"); len(names) != 1 {
		t.Errorf("environment dir = %v", names)
	}
}

func TestAtomicReinstallRollbackRestoresOriginal(t *testing.T) {
	engine := &toolEngine{}
	bodies := map[string]string{"https://dl.example.com/1.0.0/tool.txt": "first"}
	p, layout, _ := newPipeline(t, engine, bodies)
	if _, err := p.Install(context.Background(), "1.0.0"); err != nil {
		t.Fatalf("first Install: %v", err)
	}

	tests := []struct {
		name  string
		setup func()
	}{
		{"install fails", func() { engine.failInstall, engine.failVerify = true, false }},
		{"verification fails after swap", func() { engine.failInstall, engine.failVerify = false, true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			bodies["https://dl.example.com/1.0.0/tool.txt"] = "broken"

			if _, err := p.Install(context.Background(), "1.0.0"); err == nil {
				t.Fatal("expected reinstall to fail")
			}

			dirs := DirectoriesFor(layout, "tool", "1.0.0")
			data, err := os.ReadFile(filepath.Join(dirs.Path, "tool.txt"))
			if err != nil || string(data) != "first" {
				t.Errorf("original install = %q, %v; want first", data, err)
			}
			if exists(dirs.PathNew) || exists(dirs.PathOld) {
				t.Error("staging directories left behind")
			}
			if names := envEntries(t, layout, "tool"); len(names) != 1 {
				t.Errorf("environment dir = %v, want only the install", names)
			}
		})
	}
}

func TestReinstallWithoutSwapRefused(t *testing.T) {
	engine := &toolEngine{noSwap: true}
	p, layout, fetcher := newPipeline(t, engine, map[string]string{
		"https://dl.example.com/1.0.0/tool.txt": "first",
	})
	if _, err := p.Install(context.Background(), "1.0.0"); err != nil {
		t.Fatalf("first Install: %v", err)
	}

	_, err := p.Install(context.Background(), "1.0.0")
	if !errors.Is(err, deverr.ErrFileSystem) {
		t.Fatalf("err = %v, want file system error", err)
	}
	if len(fetcher.urls) != 1 {
		t.Errorf("refused reinstall fetched %v", fetcher.urls)
	}
	if !IsInstalled(layout, "tool", "1.0.0") {
		t.Error("existing install was touched")
	}
}

func TestEmptyTargetTreatedAsFresh(t *testing.T) {
	p, layout, _ := newPipeline(t, &toolEngine{noSwap: true}, map[string]string{
		"https://dl.example.com/3.0.0/tool.txt": "v3",
	})
	dirs := DirectoriesFor(layout, "tool", "3.0.0")
	if err := os.MkdirAll(dirs.Path, 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := p.Install(context.Background(), "3.0.0")
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if res.Mode != Fresh {
		t.Errorf("Mode = %v, want fresh", res.Mode)
	}
}

func TestInterruptedRunRecovered(t *testing.T) {
	tests := []struct {
		name     string
		seed     []string
		wantMode Mode
	}{
		{"backup without install", []string{"1.2.3.old"}, Reinstall},
		{"backup next to install", []string{"1.2.3", "1.2.3.old"}, Reinstall},
		{"staged tree only", []string{"1.2.3.new"}, Fresh},
		{"staged tree and backup", []string{"1.2.3.new", "1.2.3.old"}, Reinstall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, layout, _ := newPipeline(t, &toolEngine{}, map[string]string{
				"https://dl.example.com/1.2.3/tool.txt": "fresh",
			})
			envDir := layout.EnvironmentPath("tool")
			for _, name := range tt.seed {
				dir := filepath.Join(envDir, name)
				if err := os.MkdirAll(dir, 0o755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(filepath.Join(dir, "tool.txt"), []byte(name), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			res, err := p.Install(context.Background(), "1.2.3")
			if err != nil {
				t.Fatalf("Install: %v", err)
			}
			if res.Mode != tt.wantMode {
				t.Errorf("Mode = %v, want %v", res.Mode, tt.wantMode)
			}
			data, _ := os.ReadFile(filepath.Join(res.Dirs.Path, "tool.txt"))
			if string(data) != "fresh" {
				t.Errorf("installed file = %q, want fresh", data)
			}
			if names := envEntries(t, layout, "tool"); len(names) != 1 || names[0] != "1.2.3" {
				t.Errorf("environment dir = %v, want only the install", names)
			}
		})
	}
}

func TestSetupFailureLeavesStateIdle(t *testing.T) {
	p, layout, fetcher := newPipeline(t, &toolEngine{}, map[string]string{
		"https://dl.example.com/1.2.3/tool.txt": "v1",
	})
	states := recordStates(p)

	dirs := DirectoriesFor(layout, "tool", "1.2.3")
	if err := os.MkdirAll(filepath.Dir(dirs.Path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(t.TempDir(), "missing"), dirs.Path); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	_, err := p.Install(context.Background(), "1.2.3")
	if !errors.Is(err, deverr.ErrFileSystem) {
		t.Fatalf("err = %v, want file system error", err)
	}
	if len(*states) != 0 || p.State() != Idle {
		t.Errorf("states = %v, State() = %v; want no transitions", *states, p.State())
	}
	if len(fetcher.urls) != 0 {
		t.Errorf("fetched %v", fetcher.urls)
	}
	if names := envEntries(t, layout, "tool"); len(names) != 0 {
		t.Errorf("environment dir = %v, want empty", names)
	}
}

func TestInstallReclaimsLockOfDeadProcess(t *testing.T) {
	p, layout, _ := newPipeline(t, &toolEngine{}, map[string]string{
		"https://dl.example.com/1.2.3/tool.txt": "v1",
	})
	envDir := layout.EnvironmentPath("tool")
	if err := os.MkdirAll(envDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(LockPath(envDir, "1.2.3"), []byte("999999\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := p.Install(ctx, "1.2.3"); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if exists(LockPath(envDir, "1.2.3")) {
		t.Error("lock not released")
	}
}

func TestNewPipelineRequiresCapabilities(t *testing.T) {
	_, err := NewPipeline(listOnlyEngine{}, &fakeFetcher{}, userdata.Layout{Root: t.TempDir()}, nil)
	if !errors.Is(err, deverr.ErrContractViolation) {
		t.Fatalf("err = %v, want contract violation", err)
	}
	if !strings.Contains(err.Error(), "Installer") {
		t.Errorf("error %q does not name the missing capability", err)
	}
}

func TestStateString(t *testing.T) {
	if RollingBack.String() != "rolling-back" || Activated.String() != "activated" {
		t.Errorf("unexpected names %s %s", RollingBack, Activated)
	}
}

func equalStates(a, b []State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
