package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "double-words",
	Short: "Double Words game server",
	Long: `Double Words serves solo, tournament and duel rounds of the
two-letter word game over HTTP and websockets.

Run without a subcommand to start the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
