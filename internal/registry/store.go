package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/e5r/devcom/internal/branding"
	"github.com/e5r/devcom/internal/deverr"
	"github.com/e5r/devcom/internal/schema"
)

// Kind is the type of a scope source.
type Kind string

// Source kinds.
const (
	KindGitHub Kind = "github"
	KindURL    Kind = "url"
)

// Entry describes where a scope is served from.
type Entry struct {
	Type       Kind   `json:"type"`
	Owner      string `json:"owner,omitempty"`
	Repository string `json:"repository,omitempty"`
	Branch     string `json:"branch,omitempty"`
	URL        string `json:"url,omitempty"`
	Path       string `json:"path,omitempty"`
}

// Scoped pairs an entry with its scope name.
type Scoped struct {
	Scope string
	Entry Entry
}

// DefaultEntries returns the registry used when registry.json is absent.
func DefaultEntries() *orderedmap.OrderedMap[string, Entry] {
	src := branding.DefaultRegistry()
	m := orderedmap.New[string, Entry]()
	m.Set(branding.DefaultScope(), Entry{
		Type:       KindGitHub,
		Owner:      src.Owner,
		Repository: src.Repository,
		Branch:     src.Branch,
		Path:       src.Path,
	})
	return m
}

// Store is the registry.json file. Every mutation rewrites the whole file.
type Store struct {
	path    string
	entries *orderedmap.OrderedMap[string, Entry]
}

// Open loads the registry at path. A missing file yields the default
// registry, which is written to disk.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load (re)reads the registry file.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.entries = DefaultEntries()
		return s.Save()
	}
	if err != nil {
		return deverr.FileSystem("reading registry %s", s.path).Wrap(err)
	}

	entries, err := decode(data)
	if err != nil {
		return fmt.Errorf("loading registry %s: %w", s.path, err)
	}
	s.entries = entries
	return nil
}

func decode(data []byte) (*orderedmap.OrderedMap[string, Entry], error) {
	res, err := schema.Validate(schema.Registry, data)
	if err != nil {
		return nil, deverr.Configuration("malformed registry").Wrap(err)
	}
	if !res.Valid {
		return nil, deverr.Configuration("invalid registry: %s", res.Summary())
	}

	entries := orderedmap.New[string, Entry]()
	if err := json.Unmarshal(data, entries); err != nil {
		return nil, deverr.Configuration("malformed registry").Wrap(err)
	}
	return entries, nil
}

// Save writes the full registry map, replacing the file atomically.
func (s *Store) Save() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}
	if res, err := schema.Validate(schema.Registry, data); err != nil || !res.Valid {
		msg := "registry rejected"
		if res != nil {
			msg = res.Summary()
		}
		return deverr.Configuration("refusing to save invalid registry: %s", msg).Wrap(err)
	}
	return writeFileAtomic(s.path, append(data, '\n'))
}

// List returns every scope in insertion order.
func (s *Store) List() []Scoped {
	out := make([]Scoped, 0, s.entries.Len())
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, Scoped{Scope: pair.Key, Entry: pair.Value})
	}
	return out
}

// Scopes returns the scope names in insertion order.
func (s *Store) Scopes() []string {
	out := make([]string, 0, s.entries.Len())
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Show returns the entry for scope.
func (s *Store) Show(scope string) (Entry, error) {
	e, ok := s.entries.Get(scope)
	if !ok {
		return Entry{}, deverr.NotFound("registry entry %q not found", scope)
	}
	return e, nil
}

// Add merges entry into scope and persists. Fields set in entry replace
// the existing ones; an entry of a different type replaces the old one.
func (s *Store) Add(scope string, entry Entry) (Entry, error) {
	merged := entry
	if old, ok := s.entries.Get(scope); ok && old.Type == entry.Type {
		merged = merge(old, entry)
	}
	prev, hadPrev := s.entries.Set(scope, merged)
	if err := s.Save(); err != nil {
		if hadPrev {
			s.entries.Set(scope, prev)
		} else {
			s.entries.Delete(scope)
		}
		return Entry{}, err
	}
	return merged, nil
}

// Remove deletes scope and persists.
func (s *Store) Remove(scope string) error {
	old, ok := s.entries.Delete(scope)
	if !ok {
		return deverr.NotFound("registry entry %q not found", scope)
	}
	if err := s.Save(); err != nil {
		s.entries.Set(scope, old)
		return err
	}
	return nil
}

func merge(old, upd Entry) Entry {
	out := old
	if upd.Owner != "" {
		out.Owner = upd.Owner
	}
	if upd.Repository != "" {
		out.Repository = upd.Repository
	}
	if upd.Branch != "" {
		out.Branch = upd.Branch
	}
	if upd.URL != "" {
		out.URL = upd.URL
	}
	if upd.Path != "" {
		out.Path = upd.Path
	}
	return out
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return deverr.FileSystem("creating %s", dir).Wrap(err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return deverr.FileSystem("creating temp file for %s", path).Wrap(err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return deverr.FileSystem("writing %s", path).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return deverr.FileSystem("closing %s", path).Wrap(err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return deverr.FileSystem("replacing %s", path).Wrap(err)
	}
	return nil
}
