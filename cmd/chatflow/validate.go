package main

import (
	"fmt"

	"github.com/aretw0/chatflow/internal/catalog"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check workflow definitions",
	Long:  `Loads every workflow in the directory and reports the first invalid document.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.Workflows
		if len(args) > 0 {
			dir = args[0]
		}
		c, err := catalog.Load(dir)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d workflow(s) are valid! ✅\n", c.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
