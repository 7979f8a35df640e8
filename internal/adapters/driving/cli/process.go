package cli

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/quillstack-labs/pagelift/internal/core/ports/driving"
)

var (
	processEngine string
	processPrint  bool
)

var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Run a document through the OCR pipeline",
	Long: `Reads a PDF or image file, runs it through the pipeline and reports
the per-page outcome. The assembled markdown document is persisted in the
artifact store; use --print to also write it to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processEngine, "engine", "e", "", "extraction engine id (default: configured default)")
	processCmd.Flags().BoolVar(&processPrint, "print", false, "write the assembled markdown to stdout")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	if pipelineRunner == nil {
		return errors.New("pipeline not configured")
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	result, err := pipelineRunner.Run(context.Background(), driving.PipelineRequest{
		Data:     data,
		Filename: filepath.Base(path),
		EngineID: processEngine,
		MIMEHint: mime.TypeByExtension(filepath.Ext(path)),
	})
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}

	cmd.Printf("Run:      %s\n", result.RunID)
	cmd.Printf("Engine:   %s\n", result.EngineID)
	cmd.Printf("Status:   %s\n", result.Status)
	cmd.Printf("Pages:    %d\n", result.PageCount)
	cmd.Printf("Elapsed:  %s\n", result.Elapsed.Round(time.Millisecond))
	cmd.Printf("Output:   %s\n", result.OutputPath)

	for _, p := range result.Pages {
		if p.Err != nil {
			cmd.Printf("  page %d: FAILED: %v\n", p.Index, p.Err)
		}
	}

	if processPrint {
		cmd.Println()
		cmd.Println(result.Output)
	}
	return nil
}
