// Package golang is the Go toolchain environment engine, backed by the
// go.dev download feed.
package golang

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
const Name = "go"

// Feed endpoints.
const (
	DownloadURL = "https://go.dev/dl/"
	FeedURL     = DownloadURL + "?mode=json&include=all"
)

// Register adds the engine to t.
func Register(t *plugin.Table) {
	t.Register(plugin.KindLibrary, engines.ModuleName(Name), func() any { return New() })
}

// Engine installs Go toolchains.
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

type feedRelease struct {
	Version string     `json:"version"`
	Stable  bool       `json:"stable"`
	Files   []feedFile `json:"files"`
}

type feedFile struct {
	Filename string `json:"filename"`
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	Kind     string `json:"kind"`
}

// GetVersions reads the download feed. Only stable releases with archive
// downloads are reported.
func (e *Engine) GetVersions(ctx context.Context) (*environment.VersionCache, error) {
	if e.fetcher == nil {
		return nil, deverr.ContractViolation("go engine used before Init")
	}
	data, err := e.fetcher.Fetch(ctx, FeedURL)
	if err != nil {
		return nil, err
	}
	var releases []feedRelease
	if err := json.Unmarshal(data, &releases); err != nil {
		return nil, deverr.Configuration("decoding go download feed").Wrap(err)
	}

	vc := &environment.VersionCache{Environment: Name}
	for _, r := range releases {
		if !r.Stable {
			continue
		}
		platforms := make(map[string][]string)
		for _, f := range r.Files {
			if f.Kind != "archive" {
				continue
			}
			plat, arch, ok := hostNames(f.OS, f.Arch)
			if !ok {
				continue
			}
			platforms[plat] = append(platforms[plat], arch)
		}
		if len(platforms) == 0 {
			continue
		}
		vc.Versions = append(vc.Versions, environment.VersionDescriptor{
			Version:   strings.TrimPrefix(r.Version, "go"),
			Platforms: platforms,
		})
	}
	e.logger.Debug("read go download feed", "releases", len(vc.Versions))
	return vc, nil
}

// hostNames maps Go's GOOS/GOARCH to descriptor names.
func hostNames(goos, goarch string) (string, string, bool) {
	var plat string
	switch goos {
	case "linux":
		plat = platform.Linux
	case "darwin":
		plat = platform.Darwin
	case "windows":
		plat = platform.Windows
	default:
		return "", "", false
	}
	switch goarch {
	case "amd64":
		return plat, platform.X64, true
	case "386":
		return plat, platform.X86, true
	case "arm64":
		return plat, platform.ARM64, true
	}
	return "", "", false
}

// goNames is the inverse of hostNames for the configured target.
func (e *Engine) goNames() (string, string) {
	goos := e.tools.Platform()
	if goos == platform.Windows {
		goos = "windows"
	}
	goarch := map[string]string{platform.X64: "amd64", platform.X86: "386", platform.ARM64: "arm64"}[e.arch]
	return goos, goarch
}

// VersionIsValid accepts every release the feed lists as stable.
func (e *Engine) VersionIsValid(d environment.VersionDescriptor) bool {
	_, err := environment.ParseVersion(d.Version)
	return err == nil
}

// GetFullVersionNumber returns version unchanged: Go names its first
// release of a line "1.21.0" but older lines "1.20".
func (e *Engine) GetFullVersionNumber(version string) string { return version }

func (e *Engine) archiveName(version string) string {
	goos, goarch := e.goNames()
	return fmt.Sprintf("go%s.%s-%s%s", version, goos, goarch, e.tools.ArchiveExt())
}

// GetDownloadFileList returns the toolchain archive of version.
func (e *Engine) GetDownloadFileList(version string) ([]string, error) {
	if e.tools == nil {
		return nil, deverr.ContractViolation("go engine used before Init")
	}
	return []string{DownloadURL + e.archiveName(version)}, nil
}

// InstallFiles moves the unpacked go/ tree into installDir.
func (e *Engine) InstallFiles(_ context.Context, _, extractDir, installDir, version string) error {
	root := filepath.Join(extractDir, e.archiveName(version), "go")
	if !engines.IsFile(filepath.Join(root, "VERSION")) {
		return deverr.FileSystem("%s is not a go distribution", e.archiveName(version))
	}
	return engines.MoveContents(root, installDir)
}

// SuccessfullyInstalled checks for the go command.
func (e *Engine) SuccessfullyInstalled(_, installDir string) bool {
	name := "go"
	if e.tools != nil {
		name = e.tools.Executable(name)
	}
	return engines.IsFile(filepath.Join(installDir, "bin", name))
}
