package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/e5r/devcom/internal/branding"
	"github.com/e5r/devcom/internal/config"
	"github.com/e5r/devcom/internal/devcom"
	"github.com/e5r/devcom/internal/deverr"
	"github.com/e5r/devcom/internal/logging"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string

	verbose bool
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   branding.CLIName() + " <devcom> [args]",
		Short: branding.Description(),
		Long: branding.DisplayName() + ` installs and selects versions of runtime environments and runs
DevCom commands served by the configured registry scopes.

Built-in DevComs:
  ` + devcom.EnvUsage + `
  ` + devcom.RegistryUsage + `
  doc <topic>`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runDevCom,
	}
	// Everything after the DevCom name belongs to the DevCom.
	cmd.Flags().SetInterspersed(false)
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

func runDevCom(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		_ = cmd.Help()
		return &deverr.ExitError{Code: deverr.ExitNoCommand}
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	return s.Dispatch(cmd.Context(), args[0], args[1:])
}

// newSession loads settings and builds the DevCom session for cmd.
func newSession(cmd *cobra.Command) (*devcom.Session, error) {
	config.Load()
	settings := config.Current()
	logger := logging.New(cmd.ErrOrStderr(), settings.LogLevel, verbose)

	return devcom.NewSession(devcom.Options{
		Settings: settings,
		Logger:   logger,
		Out:      cmd.OutOrStdout(),
		Progress: cmd.ErrOrStderr(),
	})
}

// Execute runs the root command with build info injected via ldflags.
// An interrupt cancels the command context so in-flight installs roll
// back and release their locks before the process exits.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

var errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

// PrintError writes err for the user. An exit request without a message
// prints nothing.
func PrintError(w io.Writer, err error) {
	if err == nil {
		return
	}
	var exitErr *deverr.ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "%s %v\n", errorStyle.Render("Error:"), err)
}
