package main

import (
	"context"

	"github.com/aretw0/chatflow/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Starts chatflow as an HTTP service. Platforms POST events to /events;
outbound messages are posted to --callback-url and streamed on
/rooms/{roomID}/stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		err := cli.Serve(sigCtx, cfg, logger)
		if sig := sigCtx.Signal(); sig != nil {
			logger.Info("Stopped by signal", "signal", sig)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().String("callback-url", "", "URL every outbound message is posted to")
}
