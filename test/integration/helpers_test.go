//go:build integration

package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/e5r/devcom/internal/devcom"
	"github.com/e5r/devcom/internal/platform"
	"github.com/e5r/devcom/internal/userdata"
)

// scopeServer serves one registry scope from an in-memory file set and
// counts requests per path.
type scopeServer struct {
	*httptest.Server
	mu    sync.Mutex
	hits  map[string]int
	files map[string]string
}

func newScopeServer(t *testing.T, prefix string, files map[string]string) *scopeServer {
	t.Helper()
	s := &scopeServer{hits: make(map[string]int), files: make(map[string]string)}
	var paths []string
	for p, body := range files {
		s.files[prefix+p] = body
		paths = append(paths, p)
	}
	lock, err := json.Marshal(paths)
	if err != nil {
		t.Fatal(err)
	}
	s.files[prefix+"registry.lock.json"] = string(lock)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		body, ok := s.files[r.URL.Path]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *scopeServer) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// testEnv is an isolated user root with its registry written up front.
type testEnv struct {
	Layout userdata.Layout
	Out    *bytes.Buffer
}

func setupTestEnv(t *testing.T, registry map[string]map[string]string) *testEnv {
	t.Helper()
	root := t.TempDir()
	t.Setenv("DEV_HOME", root)

	data, err := json.MarshalIndent(registry, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, userdata.RegistryFile), data, 0o644); err != nil {
		t.Fatal(err)
	}
	return &testEnv{Layout: userdata.Layout{Root: root}, Out: &bytes.Buffer{}}
}

// session starts a fresh invocation over the environment's user root.
func (e *testEnv) session(t *testing.T) *devcom.Session {
	t.Helper()
	s, err := devcom.NewSession(devcom.Options{
		Layout: &e.Layout,
		Tools:  platform.Fixed(platform.Linux, platform.X64),
		Out:    e.Out,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func (e *testEnv) run(t *testing.T, name string, args ...string) error {
	t.Helper()
	e.Out.Reset()
	return e.session(t).Dispatch(context.Background(), name, args)
}

func assertFileContent(t *testing.T, path, want string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if string(data) != want {
		t.Errorf("%s = %q, want %q", path, data, want)
	}
}
