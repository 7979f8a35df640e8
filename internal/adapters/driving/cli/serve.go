package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Starts the HTTP server exposing document submission, run history
and health probes. Shuts down gracefully on SIGINT/SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if serveServer == nil {
		return errors.New("HTTP server not configured")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- serveServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		cmd.Printf("Received %s, shutting down...\n", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := serveServer.Shutdown(ctx); err != nil {
			return err
		}
		return <-errCh
	}
}
