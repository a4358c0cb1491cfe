package devcom

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/e5r/devcom/internal/deverr"
	"github.com/e5r/devcom/internal/engines"
	"github.com/e5r/devcom/internal/environment"
	"github.com/e5r/devcom/internal/install"
	"github.com/e5r/devcom/internal/platform"
	"github.com/e5r/devcom/internal/plugin"
	"github.com/e5r/devcom/internal/resource"
)

const envName = "env"

// envActions maps every accepted spelling to its action.
var envActions = map[string]string{
	"boot": "boot", "b": "boot", "bt": "boot",
	"install": "install", "i": "install", "in": "install",
	"uninstall": "uninstall", "u": "uninstall", "un": "uninstall",
	"list": "list", "l": "list", "li": "list",
	"select": "select", "s": "select", "sl": "select",
	"test": "test", "t": "test", "ts": "test",
}

// EnvUsage is the synopsis of the env DevCom.
const EnvUsage = "env <boot|install|uninstall|list|select|test> <environment> [<version>] [--version V] [--arch A] [--available]"

type envCommand struct{}

func (c *envCommand) Name() string { return envName }

type envRequest struct {
	action    string
	env       string
	version   string
	arch      string
	available bool
}

func parseEnvArgs(args []string) (*envRequest, error) {
	fs := pflag.NewFlagSet(envName, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	req := &envRequest{}
	fs.StringVar(&req.version, "version", "", "version request (default latest)")
	fs.StringVar(&req.arch, "arch", "", "target architecture")
	fs.BoolVar(&req.available, "available", false, "list remote versions")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("env: %w", err)
	}

	rest := fs.Args()
	if len(rest) < 2 {
		return nil, &deverr.ExitError{Code: deverr.ExitNoCommand, Err: fmt.Errorf("usage: %s", EnvUsage)}
	}
	action, ok := envActions[strings.ToLower(rest[0])]
	if !ok {
		return nil, withHint(fmt.Errorf("unknown env action %q", rest[0]), rest[0], actionNames())
	}
	req.action, req.env = action, rest[1]

	if len(rest) > 2 {
		if req.version != "" && req.version != rest[2] {
			return nil, fmt.Errorf("env: version given twice (%q and --version %q)", rest[2], req.version)
		}
		req.version = rest[2]
	}
	if len(rest) > 3 {
		return nil, fmt.Errorf("env: unexpected arguments %v", rest[3:])
	}
	if req.version == "" {
		req.version = environment.Latest
	}
	return req, nil
}

func actionNames() []string {
	var names []string
	for k, v := range envActions {
		if k == v {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

func (c *envCommand) Run(ctx context.Context, s *Session, args []string) error {
	req, err := parseEnvArgs(args)
	if err != nil {
		return err
	}
	e, err := s.Engine(ctx, req.env, environment.Options{Arch: req.arch})
	if err != nil {
		return err
	}

	switch req.action {
	case "boot":
		return s.envBoot(ctx, e)
	case "install":
		return s.envInstall(ctx, e, req)
	case "uninstall":
		return s.envUninstall(e, req)
	case "list":
		if req.available {
			return s.envListAvailable(ctx, e, req)
		}
		return s.envList(e)
	case "select":
		return s.envSelect(e, req)
	default:
		return s.envTest(e, req)
	}
}

// Engine resolves lib://env/<name> and initializes the engine it yields.
func (s *Session) Engine(ctx context.Context, name string, opts environment.Options) (environment.Engine, error) {
	u, err := resource.Parse(string(resource.SchemeLibrary) + "://" + engines.ModuleName(name))
	if err != nil {
		return nil, err
	}
	a, err := s.Resolver.Resolve(ctx, u)
	if err != nil {
		if errors.Is(err, deverr.ErrNotFound) {
			return nil, withHint(err, name, s.environmentNames())
		}
		return nil, err
	}
	e, ok := a.Module.(environment.Engine)
	if !ok {
		return nil, deverr.ContractViolation("%s is not an environment engine", u)
	}
	tc := &environment.ToolContext{
		Tools:   s.Tools,
		Fetcher: s.Fetcher,
		Layout:  s.Layout,
		Logger:  s.Logger,
		Out:     s.Out,
	}
	if err := e.Init(tc, opts); err != nil {
		return nil, fmt.Errorf("initializing %s: %w", name, err)
	}
	return e, nil
}

func (s *Session) environmentNames() []string {
	var names []string
	for _, n := range s.Plugins.Names(plugin.KindLibrary) {
		if env, ok := strings.CutPrefix(n, engines.ModuleName("")); ok {
			names = append(names, env)
		}
	}
	return names
}

// target returns the platform and architecture the engine was set up for.
func (s *Session) target(req *envRequest) (string, string) {
	arch := s.Tools.Arch()
	if req.arch != "" {
		arch = req.arch
	}
	return s.Tools.Platform(), arch
}

func (s *Session) envBoot(ctx context.Context, e environment.Engine) error {
	vc, err := s.Versions.Versions(ctx, e, true)
	if err != nil {
		return err
	}
	if len(vc.Versions) == 0 {
		return deverr.NotFound("no %s releases found", e.Name())
	}
	success(s.Out, "%s: %d releases, newest %s", e.Name(), len(vc.Versions), vc.Versions[0].Version)
	return nil
}

func (s *Session) envInstall(ctx context.Context, e environment.Engine, req *envRequest) error {
	vc, err := s.Versions.Versions(ctx, e, false)
	if err != nil {
		return err
	}
	plat, arch := s.target(req)
	version, err := environment.ResolveFor(e, vc.Versions, req.version, plat, arch)
	if err != nil {
		return err
	}

	p, err := install.NewPipeline(e, s.Fetcher, s.Layout, s.Logger)
	if err != nil {
		return err
	}
	p.OnTransition = func(_, to install.State) {
		s.Logger.Info("install", "environment", e.Name(), "version", version, "state", to)
	}
	res, err := p.Install(ctx, version)
	if err != nil {
		return err
	}
	if err := s.activate(e, version); err != nil {
		return err
	}
	success(s.Out, "%s %s installed (%s) at %s", e.Name(), version, res.Mode, res.Dirs.Path)
	return nil
}

func (s *Session) envUninstall(e environment.Engine, req *envRequest) error {
	version, err := s.resolveInstalled(e, req)
	if err != nil {
		return err
	}
	if err := install.Uninstall(s.Layout, e.Name(), version); err != nil {
		return err
	}
	success(s.Out, "%s %s uninstalled", e.Name(), version)
	return nil
}

func (s *Session) envList(e environment.Engine) error {
	versions, err := install.Installed(s.Layout, e.Name())
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		muted(s.Out, "No %s versions installed.", e.Name())
		return nil
	}

	current := s.currentVersion(e.Name())
	t := newTable(s.Out, "VERSION", "CURRENT", "PATH")
	for _, v := range versions {
		dirs := install.DirectoriesFor(s.Layout, e.Name(), v.String())
		mark := ""
		if v.String() == current {
			mark = "*"
		}
		t.AppendRow([]any{v.String(), mark, dirs.Path})
	}
	t.Render()
	return nil
}

func (s *Session) envListAvailable(ctx context.Context, e environment.Engine, req *envRequest) error {
	vc, err := s.Versions.Versions(ctx, e, false)
	if err != nil {
		return err
	}
	plat, arch := s.target(req)
	t := newTable(s.Out, "VERSION", "PLATFORMS", "HOST", "INSTALLED")
	for _, d := range vc.Versions {
		host, installed := "", ""
		if d.Supports(plat, arch) {
			host = "yes"
		}
		if install.IsInstalled(s.Layout, e.Name(), d.Version) {
			installed = "yes"
		}
		t.AppendRow([]any{d.Version, platformList(d), host, installed})
	}
	t.Render()
	return nil
}

func platformList(d environment.VersionDescriptor) string {
	var parts []string
	for p, arches := range d.Platforms {
		parts = append(parts, p+"/"+strings.Join(arches, ","))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

func (s *Session) envSelect(e environment.Engine, req *envRequest) error {
	version, err := s.resolveInstalled(e, req)
	if err != nil {
		return err
	}
	if err := s.activate(e, version); err != nil {
		return err
	}
	success(s.Out, "%s %s selected", e.Name(), version)
	return nil
}

func (s *Session) envTest(e environment.Engine, req *envRequest) error {
	verifier, err := environment.Require[environment.InstallVerifier](e)
	if err != nil {
		return err
	}
	version, err := s.resolveInstalled(e, req)
	if err != nil {
		return err
	}
	dirs := install.DirectoriesFor(s.Layout, e.Name(), version)
	if !verifier.SuccessfullyInstalled(version, dirs.Path) {
		return deverr.FileSystem("%s %s at %s failed verification", e.Name(), version, dirs.Path)
	}
	success(s.Out, "%s %s ok", e.Name(), version)
	return nil
}

// resolveInstalled resolves the request against installed versions only.
func (s *Session) resolveInstalled(e environment.Engine, req *envRequest) (string, error) {
	installed, err := install.Installed(s.Layout, e.Name())
	if err != nil {
		return "", err
	}
	if len(installed) == 0 {
		return "", deverr.NotFound("no %s versions installed", e.Name())
	}
	plat, arch := s.target(req)
	descriptors := make([]environment.VersionDescriptor, 0, len(installed))
	for _, v := range installed {
		descriptors = append(descriptors, environment.VersionDescriptor{
			Version:   v.String(),
			Platforms: map[string][]string{plat: {arch}},
		})
	}
	version, err := environment.ResolveFor(e, descriptors, req.version, plat, arch)
	if err != nil {
		return "", fmt.Errorf("among installed %s versions: %w", e.Name(), err)
	}
	return version, nil
}

// activate points the current link and the env file at version.
func (s *Session) activate(e environment.Engine, version string) error {
	dirs := install.DirectoriesFor(s.Layout, e.Name(), version)
	current := s.Layout.CurrentPath(e.Name())
	if err := platform.ReplaceSymlink(dirs.Path, current); err != nil {
		return deverr.FileSystem("linking %s", current).Wrap(err)
	}
	return s.Env.SetPath(e.Name(), environment.BinDir(e, dirs.Path))
}

func (s *Session) currentVersion(env string) string {
	target, err := platform.ReadSymlinkTarget(s.Layout.CurrentPath(env))
	if err != nil {
		return ""
	}
	return filepath.Base(target)
}
