package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/e5r/devcom/internal/deverr"
	"github.com/e5r/devcom/internal/download"
	"github.com/e5r/devcom/internal/logging"
	"github.com/e5r/devcom/internal/schema"
)

// LockFileName is the manifest name relative to a scope's base URL.
const LockFileName = "registry.lock.json"

// Manifest is the allow-list of paths one scope may serve.
type Manifest struct {
	Scope string
	Paths []string
	set   map[string]struct{}
}

func newManifest(scope string, paths []string) *Manifest {
	m := &Manifest{Scope: scope, Paths: paths, set: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		m.set[p] = struct{}{}
	}
	return m
}

// Contains reports whether path is listed literally.
func (m *Manifest) Contains(path string) bool {
	_, ok := m.set[path]
	return ok
}

// LockVerifier loads lock manifests once per scope per process. A
// manifest already on disk is never re-fetched; Update does that
// explicitly.
type LockVerifier struct {
	store   *Store
	fetcher download.Fetcher
	logger  *log.Logger
	// lockPath maps a scope to its lock file.
	lockPath func(scope string) string

	group singleflight.Group
	mu    sync.Mutex
	memo  map[string]*Manifest
}

// NewLockVerifier creates a verifier for the scopes of store. lockPath
// maps a scope to its on-disk lock file.
func NewLockVerifier(store *Store, fetcher download.Fetcher, lockPath func(string) string, logger *log.Logger) *LockVerifier {
	return &LockVerifier{
		store:    store,
		fetcher:  fetcher,
		lockPath: lockPath,
		logger:   logging.OrDiscard(logger),
		memo:     make(map[string]*Manifest),
	}
}

// Manifest returns the lock manifest of scope, reading it from disk or
// fetching and persisting it on first use.
func (v *LockVerifier) Manifest(ctx context.Context, scope string) (*Manifest, error) {
	v.mu.Lock()
	m, ok := v.memo[scope]
	v.mu.Unlock()
	if ok {
		return m, nil
	}

	res, err, _ := v.group.Do(scope, func() (any, error) {
		m, err := v.load(ctx, scope, false)
		if err != nil {
			return nil, err
		}
		v.mu.Lock()
		v.memo[scope] = m
		v.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*Manifest), nil
}

func (v *LockVerifier) load(ctx context.Context, scope string, force bool) (*Manifest, error) {
	path := v.lockPath(scope)
	if !force {
		data, err := os.ReadFile(path)
		if err == nil {
			paths, err := parseLock(data)
			if err != nil {
				return nil, fmt.Errorf("loading lock file %s: %w", path, err)
			}
			return newManifest(scope, paths), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, deverr.FileSystem("reading lock file %s", path).Wrap(err)
		}
	}

	entry, err := v.store.Show(scope)
	if err != nil {
		return nil, err
	}
	base, err := BaseURL(entry)
	if err != nil {
		return nil, err
	}

	v.logger.Debug("fetching lock manifest", "scope", scope, "url", base+LockFileName)
	data, err := v.fetcher.Fetch(ctx, base+LockFileName)
	if err != nil {
		return nil, fmt.Errorf("fetching lock manifest for scope %q: %w", scope, err)
	}
	paths, err := parseLock(data)
	if err != nil {
		return nil, fmt.Errorf("lock manifest for scope %q: %w", scope, err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return nil, err
	}
	return newManifest(scope, paths), nil
}

func parseLock(data []byte) ([]string, error) {
	res, err := schema.Validate(schema.Lock, data)
	if err != nil {
		return nil, deverr.Configuration("malformed lock manifest").Wrap(err)
	}
	if !res.Valid {
		return nil, deverr.Configuration("invalid lock manifest: %s", res.Summary())
	}
	var paths []string
	if err := json.Unmarshal(data, &paths); err != nil {
		return nil, deverr.Configuration("malformed lock manifest").Wrap(err)
	}
	return paths, nil
}

// Contains reports whether scope's manifest lists path.
func (v *LockVerifier) Contains(ctx context.Context, scope, path string) (bool, error) {
	m, err := v.Manifest(ctx, scope)
	if err != nil {
		return false, err
	}
	return m.Contains(path), nil
}

// Update re-fetches the lock manifest of every scope and replaces the
// files on disk. It stops at the first failure.
func (v *LockVerifier) Update(ctx context.Context) ([]*Manifest, error) {
	var out []*Manifest
	for _, scope := range v.store.Scopes() {
		m, err := v.load(ctx, scope, true)
		if err != nil {
			return out, err
		}
		v.mu.Lock()
		v.memo[scope] = m
		v.mu.Unlock()
		out = append(out, m)
	}
	return out, nil
}

// Clean removes every lock file under dir and forgets loaded manifests.
// It returns the removed file names.
func (v *LockVerifier) Clean(dir string) ([]string, error) {
	v.Reset()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, deverr.FileSystem("reading %s", dir).Wrap(err)
	}

	var removed []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "registry.") || !strings.HasSuffix(name, ".lock.json") {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return removed, deverr.FileSystem("removing %s", name).Wrap(err)
		}
		removed = append(removed, name)
	}
	return removed, nil
}

// Reset forgets every loaded manifest.
func (v *LockVerifier) Reset() {
	v.mu.Lock()
	v.memo = make(map[string]*Manifest)
	v.mu.Unlock()
}
