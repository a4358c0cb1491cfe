package environment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/e5r/devcom/internal/deverr"
	"github.com/e5r/devcom/internal/logging"
	"github.com/e5r/devcom/internal/schema"
	"github.com/e5r/devcom/internal/userdata"
)

// DefaultTTL is how long a version cache stays fresh.
const DefaultTTL = 24 * time.Hour

// VersionStore persists version caches under the user root. Freshness is
// judged by the cache file's modification time.
type VersionStore struct {
	layout userdata.Layout
	ttl    time.Duration
	now    func() time.Time
	logger *log.Logger
}

// NewVersionStore creates a VersionStore. A non-positive ttl uses DefaultTTL.
func NewVersionStore(layout userdata.Layout, ttl time.Duration, logger *log.Logger) *VersionStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &VersionStore{layout: layout, ttl: ttl, now: time.Now, logger: logging.OrDiscard(logger)}
}

// Versions returns the version cache of e, enumerating releases through
// the engine when the cache is missing, stale or force is set.
func (s *VersionStore) Versions(ctx context.Context, e Engine, force bool) (*VersionCache, error) {
	name := e.Name()
	if !force {
		if vc, ok := s.Cached(name); ok {
			return vc, nil
		}
	}

	lister, err := Require[VersionLister](e)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("enumerating versions", "environment", name)
	vc, err := lister.GetVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing %s versions: %w", name, err)
	}

	out := Normalize(name, vc)
	if err := s.save(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Cached returns the persisted cache of env when it exists, is younger
// than the TTL and is well formed.
func (s *VersionStore) Cached(env string) (*VersionCache, bool) {
	path := s.layout.VersionCachePath(env)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if s.now().Sub(info.ModTime()) > s.ttl {
		s.logger.Debug("version cache expired", "environment", env, "modified", info.ModTime())
		return nil, false
	}

	vc, err := readCache(path)
	if err != nil {
		s.logger.Debug("ignoring version cache", "environment", env, "err", err)
		return nil, false
	}
	return vc, true
}

// Load reads the persisted cache of env regardless of its age.
func (s *VersionStore) Load(env string) (*VersionCache, error) {
	path := s.layout.VersionCachePath(env)
	vc, err := readCache(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, deverr.NotFound("no version cache for %q, run boot first", env)
	}
	return vc, err
}

func readCache(path string) (*VersionCache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	res, err := schema.Validate(schema.Versions, data)
	if err != nil {
		return nil, deverr.Configuration("malformed version cache %s", path).Wrap(err)
	}
	if !res.Valid {
		return nil, deverr.Configuration("invalid version cache %s: %s", path, res.Summary())
	}
	var vc VersionCache
	if err := json.Unmarshal(data, &vc); err != nil {
		return nil, deverr.Configuration("malformed version cache %s", path).Wrap(err)
	}
	return &vc, nil
}

func (s *VersionStore) save(vc *VersionCache) error {
	path := s.layout.VersionCachePath(vc.Environment)
	data, err := json.MarshalIndent(vc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding version cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), userdata.DirPermNormal); err != nil {
		return deverr.FileSystem("creating %s", filepath.Dir(path)).Wrap(err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, userdata.FilePermNormal); err != nil {
		return deverr.FileSystem("writing version cache").Wrap(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return deverr.FileSystem("replacing version cache").Wrap(err)
	}
	return nil
}

// Normalize keeps only well-formed releases of vc: a parseable version
// and at least one platform with at least one architecture. Platforms
// without architectures are dropped. The result is sorted newest first
// and named env.
func Normalize(env string, vc *VersionCache) *VersionCache {
	out := &VersionCache{Environment: env, Versions: []VersionDescriptor{}}
	if vc == nil {
		return out
	}

	type parsed struct {
		d VersionDescriptor
		v Version
	}
	var kept []parsed
	for _, d := range vc.Versions {
		v, err := ParseVersion(d.Version)
		if err != nil {
			continue
		}
		platforms := make(map[string][]string, len(d.Platforms))
		for p, arches := range d.Platforms {
			if len(arches) > 0 {
				platforms[p] = arches
			}
		}
		if len(platforms) == 0 {
			continue
		}
		kept = append(kept, parsed{
			d: VersionDescriptor{Version: v.String(), Platforms: platforms, Metadata: d.Metadata},
			v: v,
		})
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].v.Compare(kept[j].v) > 0 })
	for _, k := range kept {
		out.Versions = append(out.Versions, k.d)
	}
	return out
}
