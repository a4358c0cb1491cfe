package devcom

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/e5r/devcom/internal/deverr"
	"github.com/e5r/devcom/internal/download/downloadtest"
	"github.com/e5r/devcom/internal/platform"
	"github.com/e5r/devcom/internal/userdata"
)

const (
	scopeBase = "/e5r/devcom/develop/dist/"
	nodeIndex = `[
  {"version":"v21.6.0","files":["linux-x64"],"lts":false},
  {"version":"v20.11.1","files":["linux-x64","win-x64-zip"],"lts":"Iron"}
]`
)

var defaultLock = `["lib/cmd/registry.js","lib/cmd/env.js","lib/cmd/doc.js","lib/env/node.js","lib/env/ruby.js","doc/env.txt","bin/dev.sh"]`

type fixture struct {
	session  *Session
	out      *bytes.Buffer
	recorder *downloadtest.Recorder
	layout   userdata.Layout
}

func nodeTarball(t *testing.T, top string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	body := []byte("#!/bin/sh\n")
	if err := tw.WriteHeader(&tar.Header{Name: top + "/bin/node", Mode: 0o755, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(body); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// newFixture builds a session over a temp root whose default scope and
// nodejs.org are served by a local server.
func newFixture(t *testing.T, lock string) *fixture {
	t.Helper()
	archive := nodeTarball(t, "node-v20.11.1-linux-x64")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch p := r.URL.Path; {
		case p == scopeBase+"registry.lock.json":
			w.Write([]byte(lock))
		case p == scopeBase+"doc/env.txt":
			w.Write([]byte("Manage runtime environments."))
		case p == scopeBase+"bin/dev.sh":
			w.Write([]byte("#!/bin/sh\n"))
		case strings.HasPrefix(p, scopeBase+"lib/"):
			w.Write([]byte("// " + p))
		case p == "/dist/index.json":
			w.Write([]byte(nodeIndex))
		case p == "/dist/v20.11.1/node-v20.11.1-linux-x64.tar.gz":
			w.Write(archive)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	rec := downloadtest.NewRecorder(srv)

	layout := userdata.Layout{Root: t.TempDir()}
	out := &bytes.Buffer{}
	s, err := NewSession(Options{
		Layout:     &layout,
		Tools:      platform.Fixed(platform.Linux, platform.X64),
		HTTPClient: rec.Client(),
		Out:        out,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return &fixture{session: s, out: out, recorder: rec, layout: layout}
}

func (f *fixture) run(t *testing.T, name string, args ...string) error {
	t.Helper()
	f.out.Reset()
	return f.session.Dispatch(context.Background(), name, args)
}

func TestEnvLifecycle(t *testing.T) {
	f := newFixture(t, defaultLock)

	if err := f.run(t, "env", "install", "node", "20"); err != nil {
		t.Fatalf("env install: %v", err)
	}
	if !strings.Contains(f.out.String(), "node 20.11.1 installed") {
		t.Errorf("install output = %q", f.out.String())
	}
	dir := filepath.Join(f.layout.EnvironmentPath("node"), "20.11.1")
	if target, err := platform.ReadSymlinkTarget(f.layout.CurrentPath("node")); err != nil || target != dir {
		t.Errorf("current = %q, %v; want %q", target, err, dir)
	}
	entries, err := userdata.FileEnvWriter{Layout: f.layout}.Entries("node")
	if err != nil || len(entries) != 1 || !strings.HasPrefix(entries[0].Value, filepath.Join(dir, "bin")) {
		t.Errorf("env entries = %v, %v", entries, err)
	}

	if err := f.run(t, "env", "l", "node"); err != nil {
		t.Fatalf("env list: %v", err)
	}
	if !strings.Contains(f.out.String(), "20.11.1") || !strings.Contains(f.out.String(), "*") {
		t.Errorf("list output = %q", f.out.String())
	}

	if err := f.run(t, "env", "test", "node"); err != nil {
		t.Errorf("env test: %v", err)
	}
	if err := f.run(t, "env", "sl", "node", "--version", "20.11"); err != nil {
		t.Errorf("env select: %v", err)
	}

	if err := f.run(t, "env", "uninstall", "node", "20.11.1"); err != nil {
		t.Fatalf("env uninstall: %v", err)
	}
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("install dir still present: %v", err)
	}
	if err := f.run(t, "env", "test", "node"); !errors.Is(err, deverr.ErrNotFound) {
		t.Errorf("env test after uninstall: err = %v, want not found", err)
	}
}

func TestEnvBootAndAvailable(t *testing.T) {
	f := newFixture(t, defaultLock)

	if err := f.run(t, "env", "boot", "node"); err != nil {
		t.Fatalf("env boot: %v", err)
	}
	if !strings.Contains(f.out.String(), "newest 21.6.0") {
		t.Errorf("boot output = %q", f.out.String())
	}
	if _, err := os.Stat(f.layout.VersionCachePath("node")); err != nil {
		t.Errorf("version cache not written: %v", err)
	}

	if err := f.run(t, "env", "list", "node", "--available"); err != nil {
		t.Fatalf("env list --available: %v", err)
	}
	if !strings.Contains(f.out.String(), "win/x64") {
		t.Errorf("available output = %q", f.out.String())
	}
}

func TestEnvArgumentErrors(t *testing.T) {
	f := newFixture(t, defaultLock)

	err := f.run(t, "env")
	if deverr.ExitCode(err) != deverr.ExitNoCommand {
		t.Errorf("env without action: exit code %d, err %v", deverr.ExitCode(err), err)
	}

	err = f.run(t, "env", "instal", "node")
	if err == nil || !strings.Contains(err.Error(), `did you mean "install"`) {
		t.Errorf("misspelled action: err = %v", err)
	}

	err = f.run(t, "env", "install", "node", "20", "--version", "21")
	if err == nil || !strings.Contains(err.Error(), "version given twice") {
		t.Errorf("conflicting versions: err = %v", err)
	}
}

func TestEnvEngineResolution(t *testing.T) {
	f := newFixture(t, defaultLock)

	if err := f.run(t, "env", "boot", "ruby"); !errors.Is(err, deverr.ErrContractViolation) {
		t.Errorf("authorized but unimplemented engine: err = %v", err)
	}
	err := f.run(t, "env", "boot", "nod")
	if !errors.Is(err, deverr.ErrNotFound) || !strings.Contains(err.Error(), `did you mean "node"`) {
		t.Errorf("unknown engine: err = %v", err)
	}
}

func TestDispatchRequiresLockEntry(t *testing.T) {
	f := newFixture(t, `["lib/cmd/registry.js"]`)

	err := f.run(t, "env", "list", "node")
	if !errors.Is(err, deverr.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if !strings.Contains(err.Error(), "DevCom") {
		t.Errorf("error %q does not name the resource type", err)
	}

	err = f.run(t, "ev")
	if !errors.Is(err, deverr.ErrNotFound) || !strings.Contains(err.Error(), `did you mean "env"`) {
		t.Errorf("misspelled devcom: err = %v", err)
	}

	if err := f.run(t, "Env"); !errors.Is(err, deverr.ErrInvalidURI) {
		t.Errorf("invalid name: err = %v", err)
	}
}

func TestDocCommand(t *testing.T) {
	f := newFixture(t, defaultLock)

	if err := f.run(t, "doc", "env"); err != nil {
		t.Fatalf("doc: %v", err)
	}
	if f.out.String() != "Manage runtime environments.\n" {
		t.Errorf("doc output = %q", f.out.String())
	}
	if err := f.run(t, "doc", "missing"); !errors.Is(err, deverr.ErrNotFound) {
		t.Errorf("missing doc: err = %v", err)
	}
}
