// Package cli provides the command line driving adapter.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/quillstack-labs/pagelift/internal/core/ports/driven"
	"github.com/quillstack-labs/pagelift/internal/core/ports/driving"
)

// version is set at build time via -ldflags.
var version = "dev"

// EngineLister enumerates registered engine ids.
type EngineLister interface {
	IDs() []string
}

// Server is the serve command's view of the REST adapter.
type Server interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// Services injected by the composition root before Execute runs.
var (
	pipelineRunner driving.PipelineRunner
	healthChecker  driving.HealthChecker
	runJournal     driven.RunJournal
	engineLister   EngineLister
	serveServer    Server
)

// Deps carries the composed services the commands drive.
type Deps struct {
	Runner  driving.PipelineRunner
	Health  driving.HealthChecker
	Journal driven.RunJournal
	Engines EngineLister
	Server  Server
	Version string
}

// SetDeps injects services. Must be called before Execute.
func SetDeps(d Deps) {
	pipelineRunner = d.Runner
	healthChecker = d.Health
	runJournal = d.Journal
	engineLister = d.Engines
	serveServer = d.Server
	if d.Version != "" {
		version = d.Version
	}
}

var rootCmd = &cobra.Command{
	Use:   "pagelift",
	Short: "OCR document pipeline",
	Long: `pagelift turns PDFs and scanned images into markdown text.

Documents are split into pages, deskewed, run through a pluggable
extraction engine and reassembled into a single ordered output document.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
