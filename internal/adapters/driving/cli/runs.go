package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "Show recent pipeline runs",
	Long: `Lists recently completed runs from the journal, newest first.
With a run id, shows that single run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum number of runs to list")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	if runJournal == nil {
		return errors.New("run journal not configured")
	}

	ctx := context.Background()

	if len(args) == 1 {
		rec, err := runJournal.Get(ctx, args[0])
		if err != nil {
			return err
		}
		cmd.Printf("Run:       %s\n", rec.ID)
		cmd.Printf("File:      %s\n", rec.Filename)
		cmd.Printf("Engine:    %s\n", rec.EngineID)
		cmd.Printf("Status:    %s\n", rec.Status)
		cmd.Printf("Pages:     %d (%d failed)\n", rec.PagesTotal, rec.PagesFailed)
		cmd.Printf("Duration:  %s\n", rec.Duration.Round(time.Millisecond))
		cmd.Printf("SHA-256:   %s\n", rec.SHA256)
		cmd.Printf("Created:   %s\n", rec.CreatedAt.Format(time.RFC3339))
		return nil
	}

	records, err := runJournal.Recent(ctx, runsLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}

	for _, rec := range records {
		cmd.Printf("%s  %-20s  %-10s  %-20s  %d pages",
			rec.CreatedAt.Format("2006-01-02 15:04:05"),
			rec.ID, rec.EngineID, rec.Status, rec.PagesTotal)
		if rec.PagesFailed > 0 {
			cmd.Printf(" (%d failed)", rec.PagesFailed)
		}
		cmd.Println()
	}
	return nil
}
