package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/waabox/deskbridge/internal/app"
)

func init() {
	rootCmd.AddCommand(cmdServe)
}

var cmdServe = &cobra.Command{
	Use:   "serve",
	Short: "Serve the command bridge on stdin/stdout",
	Long:  "Reads length-prefixed JSON requests from stdin and writes responses and events to stdout until stdin is closed. When bridge.websocket_addr is set, the same commands are also served over WebSocket.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := app.New(cfg, logger, app.Options{Version: version})
	if err != nil {
		logger.Error("Startup failed", zap.Error(err))
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// A second signal falls through to the default handler and kills the process.
	context.AfterFunc(ctx, stop)

	if err := a.Run(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Error("Bridge stopped", zap.Error(err))
		return err
	}
	return nil
}
