package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List registered extraction engines",
	RunE:  runEngines,
}

func init() {
	rootCmd.AddCommand(enginesCmd)
}

func runEngines(cmd *cobra.Command, _ []string) error {
	if engineLister == nil {
		return errors.New("engine registry not configured")
	}

	ids := engineLister.IDs()
	if len(ids) == 0 {
		cmd.Println("No engines registered.")
		return nil
	}
	for _, id := range ids {
		cmd.Println(id)
	}
	return nil
}
