package main

import (
	"fmt"

	"github.com/aretw0/chatflow/internal/cli"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persisted runs, participants and channel sessions",
	Long:  `List, inspect, and remove the records chatflow keeps in the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored records",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cli.NewStore(cfg.Store)
		if err != nil {
			return err
		}
		kind, _ := cmd.Flags().GetString("kind")
		keys, err := cli.ListRecords(cmd.Context(), store, kind)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(keys) == 0 {
			fmt.Fprintln(out, "No records found.")
			return nil
		}
		for _, k := range keys {
			fmt.Fprintln(out, "- "+k)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <key>",
	Short: "Print a stored record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cli.NewStore(cfg.Store)
		if err != nil {
			return err
		}
		data, err := cli.InspectRecord(cmd.Context(), store, args[0])
		if err != nil {
			return fmt.Errorf("error loading '%s': %w", args[0], err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), data)
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <key>...",
	Short: "Remove one or more records",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cli.NewStore(cfg.Store)
		if err != nil {
			return err
		}
		if err := cli.RemoveRecords(cmd.Context(), store, args...); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d record(s)\n", len(args))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
	sessionLsCmd.Flags().String("kind", "", "Only list one kind: run, participant or session")
}
