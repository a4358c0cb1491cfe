package registry

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/e5r/devcom/internal/deverr"
	"github.com/e5r/devcom/internal/download"
	"github.com/e5r/devcom/internal/platform"
)

// binPrefix marks manifest paths that are installable binaries.
const binPrefix = "bin/"

// Binary is one bin/ entry of a scope.
type Binary struct {
	Scope string
	Path  string
	URL   string
}

// Name returns the file name the binary is installed as.
func (b Binary) Name() string { return path.Base(b.Path) }

// Binaries lists the bin/ entries of every scope, or of scope alone when
// it is non-empty. A name listed by several scopes is served by the first.
func (l *Locator) Binaries(ctx context.Context, scope string) ([]Binary, error) {
	scopes := l.Store.List()
	if scope != "" {
		e, err := l.Store.Show(scope)
		if err != nil {
			return nil, err
		}
		scopes = []Scoped{{Scope: scope, Entry: e}}
	}

	seen := make(map[string]bool)
	var out []Binary
	for _, s := range scopes {
		m, err := l.Locks.Manifest(ctx, s.Scope)
		if err != nil {
			return nil, err
		}
		base, err := BaseURL(s.Entry)
		if err != nil {
			return nil, err
		}
		for _, p := range m.Paths {
			if !strings.HasPrefix(p, binPrefix) || strings.HasSuffix(p, "/") {
				continue
			}
			b := Binary{Scope: s.Scope, Path: p, URL: base + p}
			if seen[b.Name()] {
				continue
			}
			seen[b.Name()] = true
			out = append(out, b)
		}
	}
	return out, nil
}

// InstallBinaries downloads bins into dir and marks them executable.
func InstallBinaries(ctx context.Context, fetcher download.Fetcher, bins []Binary, dir string) ([]string, error) {
	var installed []string
	for _, b := range bins {
		dest := filepath.Join(dir, b.Name())
		if err := fetcher.FetchFile(ctx, b.URL, dest); err != nil {
			return installed, fmt.Errorf("installing %s from scope %q: %w", b.Path, b.Scope, err)
		}
		if err := platform.MakeExecutable(dest); err != nil {
			return installed, deverr.FileSystem("marking %s executable", dest).Wrap(err)
		}
		installed = append(installed, dest)
	}
	return installed, nil
}
