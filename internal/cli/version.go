package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/e5r/devcom/internal/branding"
	"github.com/e5r/devcom/internal/config"
	"github.com/e5r/devcom/internal/platform"
)

var (
	versionShort bool
	versionJSON  bool
)

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print the release number only")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print build and host details as JSON")
	rootCmd.AddCommand(versionCmd)
}

// buildInfo is what `dev version` reports: the binary's build stamp plus
// the platform names engines resolve downloads for.
type buildInfo struct {
	Version  string `json:"version"`
	Commit   string `json:"commit"`
	Date     string `json:"date"`
	Platform string `json:"platform,omitempty"`
	Arch     string `json:"arch,omitempty"`
	Root     string `json:"root"`
}

func currentBuild() buildInfo {
	info := buildInfo{Version: buildVersion, Commit: buildCommit, Date: buildDate, Root: config.Dir()}
	if tools, err := platform.Detect(); err == nil {
		info.Platform, info.Arch = tools.Platform(), tools.Arch()
	}
	return info
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the build and the host platform",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		info := currentBuild()
		switch {
		case versionShort:
			fmt.Fprintln(out, info.Version)
		case versionJSON:
			data, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding build info: %w", err)
			}
			fmt.Fprintln(out, string(data))
		default:
			host := "unsupported host"
			if info.Platform != "" {
				host = info.Platform + "/" + info.Arch
			}
			fmt.Fprintf(out, "%s %s (commit %s, built %s) on %s\n", branding.CLIName(), info.Version, info.Commit, info.Date, host)
			fmt.Fprintf(out, "user root: %s\n", info.Root)
		}
		return nil
	},
}
