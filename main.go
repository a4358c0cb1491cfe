package main

import (
	"os"

	"github.com/e5r/devcom/internal/cli"
	"github.com/e5r/devcom/internal/deverr"
)

// version, commit, and date are set via ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := cli.Execute(version, commit, date); err != nil {
		cli.PrintError(os.Stderr, err)
		os.Exit(deverr.ExitCode(err))
	}
}
