package main

import (
	"context"
	"os"

	"github.com/aretw0/chatflow/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Talk to the bot in the terminal",
	Long: `Starts the bot with a console platform: each line typed is delivered as an
event from a single user in a one-to-one room. Answer a select with the
option number, a yes/no with y or n, and a task with "done".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()
		return cli.RunConsole(sigCtx, cfg, os.Stdin, os.Stdout, logger)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
