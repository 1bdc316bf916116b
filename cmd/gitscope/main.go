package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information, set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "gitscope",
	Short: "Local git agent with change watching and assistant suggestions",
	Long: `gitscope serves a local HTTP API over a selected git working tree.

It watches the tree for changes, keeps cached status snapshots for cheap
polling, and can ask Gemini to summarize pending changes and propose a
commit script.`,
	Version: version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"gitscope %s (commit %s, built %s)\n", version, commit, date))
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
