package registry

import (
	"context"

	"github.com/e5r/devcom/internal/deverr"
)

// Location is where a resource path is served from.
type Location struct {
	Scope string
	URL   string
}

// Locator maps root-relative resource paths to download URLs, consulting
// the lock manifests of every scope in registry order.
type Locator struct {
	Store *Store
	Locks *LockVerifier
}

// Locate returns the URL of suffix in the first scope whose manifest lists
// it. label names the resource type in the NotFound error.
func (l *Locator) Locate(ctx context.Context, suffix, label string) (Location, error) {
	for _, scoped := range l.Store.List() {
		m, err := l.Locks.Manifest(ctx, scoped.Scope)
		if err != nil {
			return Location{}, err
		}
		if !m.Contains(suffix) {
			continue
		}
		base, err := BaseURL(scoped.Entry)
		if err != nil {
			return Location{}, err
		}
		return Location{Scope: scoped.Scope, URL: base + suffix}, nil
	}
	return Location{}, deverr.NotFound("%s %q not found in any registry scope", label, suffix)
}
