package devcom

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/e5r/devcom/internal/deverr"
	"github.com/e5r/devcom/internal/registry"
)

const registryName = "registry"

// RegistryUsage is the synopsis of the registry DevCom.
const RegistryUsage = "registry <list|show|remove|add|get-binaries|lock-update|lock-clean> [args]"

var registryActions = []string{"add", "get-binaries", "list", "lock-clean", "lock-update", "remove", "show"}

type registryCommand struct{}

func (c *registryCommand) Name() string { return registryName }

func (c *registryCommand) Run(ctx context.Context, s *Session, args []string) error {
	fs := pflag.NewFlagSet(registryName, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var src registry.SourceOptions
	var scope string
	fs.StringVar(&src.Name, "name", "", "scope name for add")
	fs.StringVar(&src.Branch, "branch", "", "GitHub branch for add")
	fs.StringVar(&src.Path, "path", "", "path inside the source for add")
	fs.StringVar(&scope, "scope", "", "limit get-binaries to one scope")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("registry: %w", err)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return &deverr.ExitError{Code: deverr.ExitNoCommand, Err: fmt.Errorf("usage: %s", RegistryUsage)}
	}
	action, rest := rest[0], rest[1:]

	switch action {
	case "list":
		return s.registryList()
	case "show":
		name, err := oneArg(action, rest)
		if err != nil {
			return err
		}
		return s.registryShow(name)
	case "remove":
		name, err := oneArg(action, rest)
		if err != nil {
			return err
		}
		if err := s.Store.Remove(name); err != nil {
			return err
		}
		success(s.Out, "removed scope %q", name)
		return nil
	case "add":
		raw, err := oneArg(action, rest)
		if err != nil {
			return err
		}
		return s.registryAdd(raw, src)
	case "get-binaries":
		return s.registryBinaries(ctx, scope)
	case "lock-update":
		manifests, err := s.Locks.Update(ctx)
		for _, m := range manifests {
			success(s.Out, "%s: %d paths", m.Scope, len(m.Paths))
		}
		return err
	case "lock-clean":
		removed, err := s.Locks.Clean(s.Layout.Root)
		if err != nil {
			return err
		}
		if len(removed) == 0 {
			muted(s.Out, "No lock files to remove.")
		}
		for _, name := range removed {
			success(s.Out, "removed %s", name)
		}
		return nil
	default:
		return withHint(fmt.Errorf("unknown registry action %q", action), action, registryActions)
	}
}

func oneArg(action string, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("registry %s: expected one argument, got %d", action, len(args))
	}
	return args[0], nil
}

func (s *Session) registryList() error {
	t := newTable(s.Out, "SCOPE", "TYPE", "BASE URL")
	for _, sc := range s.Store.List() {
		base, err := registry.BaseURL(sc.Entry)
		if err != nil {
			base = "invalid: " + err.Error()
		}
		t.AppendRow([]any{sc.Scope, sc.Entry.Type, base})
	}
	t.Render()
	return nil
}

func (s *Session) registryShow(scope string) error {
	e, err := s.Store.Show(scope)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.Out, "scope:      %s\n", scope)
	fmt.Fprintf(s.Out, "type:       %s\n", e.Type)
	switch e.Type {
	case registry.KindGitHub:
		fmt.Fprintf(s.Out, "owner:      %s\n", e.Owner)
		fmt.Fprintf(s.Out, "repository: %s\n", e.Repository)
		fmt.Fprintf(s.Out, "branch:     %s\n", e.Branch)
	case registry.KindURL:
		fmt.Fprintf(s.Out, "url:        %s\n", e.URL)
	}
	if e.Path != "" {
		fmt.Fprintf(s.Out, "path:       %s\n", e.Path)
	}
	if base, err := registry.BaseURL(e); err == nil {
		fmt.Fprintf(s.Out, "base url:   %s\n", base)
	}
	return nil
}

func (s *Session) registryAdd(raw string, opts registry.SourceOptions) error {
	scope, entry, err := registry.ParseSource(raw, opts)
	if err != nil {
		return err
	}
	saved, err := s.Store.Add(scope, entry)
	if err != nil {
		return err
	}
	base, err := registry.BaseURL(saved)
	if err != nil {
		return err
	}
	success(s.Out, "scope %q serves %s", scope, base)
	return nil
}

func (s *Session) registryBinaries(ctx context.Context, scope string) error {
	bins, err := s.Locator.Binaries(ctx, scope)
	if err != nil {
		return err
	}
	if len(bins) == 0 {
		muted(s.Out, "No binaries published.")
		return nil
	}
	installed, err := registry.InstallBinaries(ctx, s.Fetcher, bins, s.Layout.BinPath())
	for _, p := range installed {
		success(s.Out, "installed %s", p)
	}
	if err != nil {
		return err
	}
	muted(s.Out, "Add %s to PATH to use them.", s.Layout.BinPath())
	return nil
}
