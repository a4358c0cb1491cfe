package resource

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/e5r/devcom/internal/deverr"
	"github.com/e5r/devcom/internal/download"
	"github.com/e5r/devcom/internal/logging"
	"github.com/e5r/devcom/internal/plugin"
	"github.com/e5r/devcom/internal/registry"
	"github.com/e5r/devcom/internal/userdata"
)

// Artifact is a resolved resource.
type Artifact struct {
	URI     URI
	Key     string
	Path    string
	Content []byte
	// Module is the registered implementation for cmd and lib resources.
	Module any
}

// Text returns the content as a string.
func (a *Artifact) Text() string { return string(a.Content) }

// Locator finds the download URL of a root-relative path.
type Locator interface {
	Locate(ctx context.Context, suffix, label string) (registry.Location, error)
}

// ModuleLoader instantiates the implementation of a module resource.
type ModuleLoader interface {
	Load(kind plugin.Kind, name string) (any, error)
}

// Resolver turns URIs into artifacts. Its cache lives as long as the
// Resolver; callers construct one per invocation.
type Resolver struct {
	layout  userdata.Layout
	locator Locator
	fetcher download.Fetcher
	loader  ModuleLoader
	cache   *Cache
	logger  *log.Logger
}

// Config holds the collaborators of a Resolver.
type Config struct {
	Layout   userdata.Layout
	Locator  Locator
	Fetcher  download.Fetcher
	Loader   ModuleLoader
	Capacity int
	Logger   *log.Logger
}

// NewResolver creates a Resolver.
func NewResolver(cfg Config) *Resolver {
	return &Resolver{
		layout:  cfg.Layout,
		locator: cfg.Locator,
		fetcher: cfg.Fetcher,
		loader:  cfg.Loader,
		cache:   NewCache(cfg.Capacity),
		logger:  logging.OrDiscard(cfg.Logger),
	}
}

// Cache exposes the in-memory cache.
func (r *Resolver) Cache() *Cache { return r.cache }

// Reset clears the in-memory cache.
func (r *Resolver) Reset() { r.cache.Reset() }

// ResolveString parses raw and resolves it.
func (r *Resolver) ResolveString(ctx context.Context, raw string) (*Artifact, error) {
	u, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, u)
}

// Resolve returns the artifact for u from memory, disk or the registry,
// in that order.
func (r *Resolver) Resolve(ctx context.Context, u URI) (*Artifact, error) {
	key := u.Key()
	if a, ok := r.cache.Get(key); ok {
		return a, nil
	}

	a, err := r.loadFromDisk(u)
	if err != nil {
		return nil, err
	}
	if a != nil {
		return a, nil
	}

	loc, err := r.locator.Locate(ctx, key, u.Label())
	if err != nil {
		return nil, err
	}
	r.logger.Debug("fetching resource", "uri", u.String(), "scope", loc.Scope, "url", loc.URL)
	if err := r.fetcher.FetchFile(ctx, loc.URL, r.layout.ResourcePath(key)); err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u, err)
	}

	a, err = r.loadFromDisk(u)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, deverr.NotFound("%s %q not found", u.Label(), u.Name)
	}
	return a, nil
}

// loadFromDisk returns nil, nil when the file does not exist.
func (r *Resolver) loadFromDisk(u URI) (*Artifact, error) {
	key := u.Key()
	path := r.layout.ResourcePath(key)

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, deverr.FileSystem("reading %s", path).Wrap(err)
	}
	if info.IsDir() {
		return nil, deverr.FileSystem("%s is a directory, expected a file", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, deverr.FileSystem("reading %s", path).Wrap(err)
	}

	a := &Artifact{URI: u, Key: key, Path: path, Content: content}
	if u.IsModule() {
		a.Module, err = r.loader.Load(u.PluginKind(), u.Name)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", u, err)
		}
	}

	for _, k := range r.cache.Put(key, a) {
		r.logger.Debug("evicted resource from cache", "key", k)
	}
	return a, nil
}
