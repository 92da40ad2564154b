package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCommand reports build information.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("hovel %s\ncommit: %s\nbuilt:  %s\n", Version, Commit, Date)
		},
	}
}
