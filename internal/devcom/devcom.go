// Package devcom holds the DevCom commands bundled with dev and the
// dispatcher that runs them.
//
// A DevCom is addressed by name. The registry command is built in so a
// broken or empty registry can always be repaired. Every other name is
// resolved as cmd://<name> through the resource resolver, which checks
// that a registry scope serves it before the bundled implementation runs.
package devcom

import (
	"context"
	"errors"
	"fmt"

	"github.com/sahilm/fuzzy"

	"github.com/e5r/devcom/internal/deverr"
	"github.com/e5r/devcom/internal/engines/golang"
	"github.com/e5r/devcom/internal/engines/node"
	"github.com/e5r/devcom/internal/plugin"
	"github.com/e5r/devcom/internal/resource"
)

// DevCom is a command module.
type DevCom interface {
	Name() string
	Run(ctx context.Context, s *Session, args []string) error
}

// RegisterBuiltins adds the bundled DevComs and environment engines to t.
func RegisterBuiltins(t *plugin.Table) {
	t.Register(plugin.KindCommand, registryName, func() any { return &registryCommand{} })
	t.Register(plugin.KindCommand, envName, func() any { return &envCommand{} })
	t.Register(plugin.KindCommand, docName, func() any { return &docCommand{} })
	node.Register(t)
	golang.Register(t)
}

// Dispatch runs the DevCom called name with args.
func (s *Session) Dispatch(ctx context.Context, name string, args []string) error {
	cmd, err := s.command(ctx, name)
	if err != nil {
		return err
	}
	s.Logger.Debug("running devcom", "name", name, "args", args)
	return cmd.Run(ctx, s, args)
}

func (s *Session) command(ctx context.Context, name string) (DevCom, error) {
	if name == registryName {
		return &registryCommand{}, nil
	}

	u, err := resource.Parse(string(resource.SchemeCommand) + "://" + name)
	if err != nil {
		return nil, err
	}
	a, err := s.Resolver.Resolve(ctx, u)
	if err != nil {
		if errors.Is(err, deverr.ErrNotFound) {
			return nil, withHint(err, name, s.Plugins.Names(plugin.KindCommand))
		}
		return nil, err
	}
	cmd, ok := a.Module.(DevCom)
	if !ok {
		return nil, deverr.ContractViolation("%s is not a DevCom", u)
	}
	return cmd, nil
}

// suggest returns the closest candidate to input, or "".
func suggest(input string, candidates []string) string {
	matches := fuzzy.Find(input, candidates)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}

// withHint appends a did-you-mean hint to err when one exists.
func withHint(err error, input string, candidates []string) error {
	hint := suggest(input, candidates)
	if hint == "" || hint == input {
		return err
	}
	return fmt.Errorf("%w (did you mean %q?)", err, hint)
}
