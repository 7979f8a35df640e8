package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check local pipeline health",
	Long: `Verifies the process dependencies (artifact storage) are usable,
without submitting a document.`,
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	if healthChecker == nil {
		return errors.New("health checker not configured")
	}

	ctx := context.Background()
	if err := healthChecker.Ready(ctx); err != nil {
		return err
	}
	cmd.Println("OK")
	return nil
}
