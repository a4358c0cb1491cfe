// Package node is the Node.js environment engine. Releases come from the
// nodejs.org distribution index and install as the unpacked binary
// archive for the host platform.
package node

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/e5r/devcom/internal/deverr"
	"github.com/e5r/devcom/internal/download"
	"github.com/e5r/devcom/internal/engines"
	"github.com/e5r/devcom/internal/environment"
	"github.com/e5r/devcom/internal/logging"
	"github.com/e5r/devcom/internal/platform"
	"github.com/e5r/devcom/internal/plugin"
)

// Name is the environment name.
const Name = "node"

// DistURL is the root of the Node.js distribution site.
const DistURL = "https://nodejs.org/dist/"

// minMajor is the oldest release line published with the current
// archive naming on every platform.
const minMajor = 4

// Register adds the engine to t.
func Register(t *plugin.Table) {
	t.Register(plugin.KindLibrary, engines.ModuleName(Name), func() any { return New() })
}

// Engine installs Node.js releases.
type Engine struct {
	tools   platform.ToolSet
	arch    string
	fetcher download.Fetcher
	logger  *log.Logger
}

// New returns an uninitialized Engine.
func New() *Engine { return &Engine{logger: logging.Discard()} }

func (e *Engine) Name() string { return Name }

// Init binds the engine to the host tool set.
func (e *Engine) Init(tc *environment.ToolContext, opts environment.Options) error {
	tools, arch, err := engines.HostFacts(tc, opts)
	if err != nil {
		return err
	}
	e.tools, e.arch, e.fetcher = tools, arch, tc.Fetcher
	e.logger = logging.OrDiscard(tc.Logger)
	return nil
}

// release is one entry of dist/index.json.
type release struct {
	Version string          `json:"version"`
	Date    string          `json:"date"`
	Files   []string        `json:"files"`
	LTS     json.RawMessage `json:"lts"`
}

type metadata struct {
	Date string `json:"date,omitempty"`
	LTS  string `json:"lts,omitempty"`
}

// GetVersions reads the distribution index.
func (e *Engine) GetVersions(ctx context.Context) (*environment.VersionCache, error) {
	if e.fetcher == nil {
		return nil, deverr.ContractViolation("node engine used before Init")
	}
	data, err := e.fetcher.Fetch(ctx, DistURL+"index.json")
	if err != nil {
		return nil, err
	}
	var releases []release
	if err := json.Unmarshal(data, &releases); err != nil {
		return nil, deverr.Configuration("decoding node release index").Wrap(err)
	}

	vc := &environment.VersionCache{Environment: Name}
	for _, r := range releases {
		platforms := parseFiles(r.Files)
		if len(platforms) == 0 {
			continue
		}
		meta, _ := json.Marshal(metadata{Date: r.Date, LTS: ltsName(r.LTS)})
		vc.Versions = append(vc.Versions, environment.VersionDescriptor{
			Version:   strings.TrimPrefix(r.Version, "v"),
			Platforms: platforms,
			Metadata:  meta,
		})
	}
	e.logger.Debug("read node release index", "releases", len(vc.Versions))
	return vc, nil
}

// parseFiles maps index file tags such as "linux-x64" or "win-x64-zip"
// to platform/arch pairs. Only tags with a downloadable binary archive
// count.
func parseFiles(files []string) map[string][]string {
	out := make(map[string][]string)
	for _, f := range files {
		parts := strings.Split(f, "-")
		if len(parts) < 2 {
			continue
		}
		var plat string
		switch {
		case parts[0] == "linux" && len(parts) == 2:
			plat = platform.Linux
		case parts[0] == "osx" && len(parts) == 3 && parts[2] == "tar":
			plat = platform.Darwin
		case parts[0] == "win" && len(parts) == 3 && parts[2] == "zip":
			plat = platform.Windows
		default:
			continue
		}
		arch := parts[1]
		if !platform.ValidArch(arch) {
			continue
		}
		out[plat] = appendUnique(out[plat], arch)
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

// ltsName decodes the "lts" field, which is false or a codename.
func ltsName(raw json.RawMessage) string {
	var name string
	if json.Unmarshal(raw, &name) == nil {
		return name
	}
	return ""
}

// VersionIsValid rejects release lines older than minMajor.
func (e *Engine) VersionIsValid(d environment.VersionDescriptor) bool {
	v, err := environment.ParseVersion(d.Version)
	return err == nil && v.Components()[0] >= minMajor
}

// GetFullVersionNumber pads version to major.minor.patch.
func (e *Engine) GetFullVersionNumber(version string) string {
	v, err := environment.ParseVersion(version)
	if err != nil {
		return version
	}
	c := v.Components()
	return fmt.Sprintf("%d.%d.%d", c[0], c[1], c[2])
}

// archiveBase is the archive name without extension, which is also the
// archive's top-level directory.
func (e *Engine) archiveBase(version string) string {
	return fmt.Sprintf("node-v%s-%s-%s", version, e.tools.Platform(), e.arch)
}

// GetDownloadFileList returns the binary archive of version.
func (e *Engine) GetDownloadFileList(version string) ([]string, error) {
	if e.tools == nil {
		return nil, deverr.ContractViolation("node engine used before Init")
	}
	name := e.archiveBase(version) + e.tools.ArchiveExt()
	return []string{fmt.Sprintf("%sv%s/%s", DistURL, version, name)}, nil
}

// InstallFiles moves the unpacked release into installDir.
func (e *Engine) InstallFiles(_ context.Context, _, extractDir, installDir, version string) error {
	name := e.archiveBase(version) + e.tools.ArchiveExt()
	root, err := engines.SingleDir(filepath.Join(extractDir, name))
	if err != nil {
		return err
	}
	return engines.MoveContents(root, installDir)
}

// SuccessfullyInstalled checks for the node executable.
func (e *Engine) SuccessfullyInstalled(_, installDir string) bool {
	return engines.IsFile(e.Executable(installDir))
}

// Executable returns the node binary path inside installDir.
func (e *Engine) Executable(installDir string) string {
	if e.tools != nil && e.tools.Platform() == platform.Windows {
		return filepath.Join(installDir, e.tools.Executable("node"))
	}
	return filepath.Join(installDir, "bin", "node")
}

// BinDir is the directory added to PATH when the version is selected.
func (e *Engine) BinDir(installDir string) string {
	return filepath.Dir(e.Executable(installDir))
}
