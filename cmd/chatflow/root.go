package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/chatflow/internal/cli"
	"github.com/aretw0/chatflow/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chatflow",
	Short: "chatflow runs conversational workflows for chat bots",
	Long: `chatflow loads YAML workflow definitions and drives them as multi-step
conversations: it asks questions, records the answers and resumes when the
participant replies.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := config.New()
		if err := config.BindFlags(v, cmd.Flags()); err != nil {
			return err
		}
		file, _ := cmd.Flags().GetString("config")
		var err error
		if cfg, err = config.Load(v, file); err != nil {
			return err
		}
		logger, err = cli.NewLogger(cfg.Log)
		return err
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to a config file (yaml, json or toml)")
	flags.StringP("workflows", "w", "workflows", "Directory containing workflow definitions")
	flags.String("directory", "", "YAML file describing the bot's rooms and members")
	flags.String("store", config.StoreMemory, "Store type: memory, file or redis")
	flags.String("store-dir", ".chatflow", "Directory used by the file store")
	flags.String("redis-addr", "localhost:6379", "Redis address used by the redis store")
	flags.String("bot-id", "bot", "User id the bot posts as")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "text", "Log format: text or json")
}
