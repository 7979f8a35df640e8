// Command pagelift runs the OCR document pipeline, either as a one-shot
// CLI or as an HTTP service.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/quillstack-labs/pagelift/internal/adapters/driven/engine/lighton"
	"github.com/quillstack-labs/pagelift/internal/adapters/driven/engine/tesseract"
	"github.com/quillstack-labs/pagelift/internal/adapters/driven/preprocess"
	"github.com/quillstack-labs/pagelift/internal/adapters/driven/split"
	"github.com/quillstack-labs/pagelift/internal/adapters/driven/storage/file"
	"github.com/quillstack-labs/pagelift/internal/adapters/driven/storage/sqlite"
	"github.com/quillstack-labs/pagelift/internal/adapters/driving/cli"
	"github.com/quillstack-labs/pagelift/internal/adapters/driving/rest"
	"github.com/quillstack-labs/pagelift/internal/config"
	"github.com/quillstack-labs/pagelift/internal/core/ports/driven"
	"github.com/quillstack-labs/pagelift/internal/core/services"
	"github.com/quillstack-labs/pagelift/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("PAGELIFT_CONFIG"))
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	store, err := file.New(cfg.Storage.ArtifactDir, log.Named("store"))
	if err != nil {
		return err
	}

	journal, err := sqlite.NewJournal(cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	defer journal.Close()

	registry := services.NewEngineRegistry()
	if err := registerEngines(registry, cfg.Engines); err != nil {
		return err
	}

	splitter := split.New(split.Config{
		MaxPDFPages:       cfg.Limits.MaxPDFPages,
		MaxImageDimension: cfg.Limits.MaxImageDimension,
	}, log.Named("split"))

	deskewer := preprocess.NewDeskewer(nil, log.Named("preprocess"))

	pipeline := services.NewPipeline(splitter, deskewer, store, registry, journal,
		services.PipelineConfig{
			DefaultEngine:   cfg.Pipeline.DefaultEngine,
			MaxUploadBytes:  cfg.Limits.MaxUploadBytes,
			Workers:         cfg.Pipeline.Workers,
			RetryAttempts:   cfg.Pipeline.RetryAttempts,
			RetryBackoff:    cfg.Pipeline.RetryBackoff(),
			DocumentTimeout: cfg.Pipeline.DocumentTimeout(),
		}, log.Named("pipeline"))

	health := services.NewHealth(store)

	sweeper := services.NewRetentionSweeper(store,
		cfg.Storage.Retention(), cfg.Storage.SweepInterval(), log.Named("retention"))
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go sweeper.Run(sweepCtx)

	server := rest.NewServer(rest.Config{
		Addr:           cfg.Server.Addr,
		APIKey:         cfg.Server.APIKey,
		MaxUploadBytes: cfg.Limits.MaxUploadBytes,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	}, pipeline, health, journal, registry, log.Named("http"))

	cli.SetDeps(cli.Deps{
		Runner:  pipeline,
		Health:  health,
		Journal: journal,
		Engines: registry,
		Server:  server,
		Version: version,
	})
	log.Info("pagelift initialised",
		zap.String("version", version),
		zap.String("default_engine", cfg.Pipeline.DefaultEngine))
	return cli.Execute()
}

// registerEngines wires every configured engine into the registry.
// Construction is deferred to run time, so a misconfigured engine only
// fails runs that select it.
func registerEngines(registry *services.EngineRegistry, cfg config.EnginesConfig) error {
	err := registry.Register("lighton", func() (driven.Engine, error) {
		return lighton.New(lighton.Config{
			BaseURL: cfg.Lighton.BaseURL,
			APIKey:  cfg.Lighton.APIKey,
			Model:   cfg.Lighton.Model,
			Timeout: cfg.Lighton.Timeout(),
		})
	})
	if err != nil {
		return err
	}

	return registry.Register("tesseract", func() (driven.Engine, error) {
		return tesseract.New(tesseract.Config{Languages: cfg.Tesseract.Languages})
	})
}
