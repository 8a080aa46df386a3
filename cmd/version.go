package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crawlkit/crawlkit/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Version does not need config or a logger.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(*cobra.Command, []string) {
			fmt.Printf("crawlkit %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
