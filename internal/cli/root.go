// Package cli implements the cobra commands for the hovel binary.
//
// The root command only carries help text and version wiring; the serve
// command runs the control plane. Each command lives in its own file.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version, Commit, and Date are set at build time via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hovel",
		Short: "Per-branch development environment orchestrator",
		Long: `hovel provisions isolated development workspaces per branch: each branch
gets its own workspace directory rendered from a shared template, a unique
host port, a version-control branch, and a container group managed through
the host container engine. A long-lived HTTP API drives the lifecycle.`,

		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}
