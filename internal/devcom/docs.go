package devcom

import (
	"context"
	"fmt"
	"strings"

	"github.com/e5r/devcom/internal/deverr"
	"github.com/e5r/devcom/internal/resource"
)

const docName = "doc"

type docCommand struct{}

func (c *docCommand) Name() string { return docName }

// Run prints doc://<topic>.
func (c *docCommand) Run(ctx context.Context, s *Session, args []string) error {
	if len(args) == 0 {
		return &deverr.ExitError{Code: deverr.ExitNoCommand, Err: fmt.Errorf("usage: doc <topic>")}
	}
	u, err := resource.Parse(string(resource.SchemeDoc) + "://" + splitTopic(args))
	if err != nil {
		return err
	}
	a, err := s.Resolver.Resolve(ctx, u)
	if err != nil {
		return err
	}
	text := a.Text()
	fmt.Fprint(s.Out, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(s.Out)
	}
	return nil
}

// splitTopic joins a topic given as "a b" into "a/b".
func splitTopic(args []string) string {
	return strings.Join(args, "/")
}
