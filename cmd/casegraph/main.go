package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/casegraph/internal/config"
	"github.com/ajitpratap0/casegraph/internal/enrich"
	"github.com/ajitpratap0/casegraph/internal/persist"
	"github.com/ajitpratap0/casegraph/internal/pipeline"
	"github.com/ajitpratap0/casegraph/internal/review"
	"github.com/ajitpratap0/casegraph/internal/store"
	"github.com/ajitpratap0/casegraph/pkg/textutil"
)

var (
	cfg        *config.Config
	configPath string
	caseID     string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "casegraph",
		Short: "casegraph builds a case knowledge graph from investigation documents",
		Long: "casegraph extracts entities, timeline events, connections and versioned alibi " +
			"statements from case documents, persists them idempotently and flags contradictions for review.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if configPath != "" {
				cfg, err = config.LoadFile(configPath)
			} else {
				cfg, err = config.Load()
			}
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.casegraph/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&caseID, "case", "", "case identifier")

	rootCmd.AddCommand(
		ingestCmd(),
		classifyCmd(),
		entitiesCmd(),
		timelineCmd(),
		connectionsCmd(),
		alibisCmd(),
		inconsistenciesCmd(),
		reviewCmd(),
		statsCmd(),
		exportCmd(),
		serveCmd(),
		mcpCmd(),
		healthCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil {
		switch cfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newStore(ctx context.Context, logger *slog.Logger) (store.GraphStore, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	case config.BackendNeo4j:
		return store.NewNeo4jStore(ctx, store.Neo4jConfig{
			URI:         cfg.Neo4j.URI,
			User:        cfg.Neo4j.User,
			Password:    cfg.Neo4j.Password,
			Database:    cfg.Neo4j.Database,
			MaxPoolSize: cfg.Neo4j.MaxPoolSize,
			Timeout:     cfg.Neo4j.Timeout,
		}, logger)
	default:
		return store.NewSQLiteStore(cfg.SQLite.Path, logger)
	}
}

func newEnricher(logger *slog.Logger) (enrich.Source, error) {
	return enrich.New(enrich.Config{
		Provider:          cfg.Enrich.Provider,
		APIKey:            cfg.Enrich.APIKey,
		Model:             cfg.Enrich.Model,
		BaseURL:           cfg.Enrich.BaseURL,
		Timeout:           cfg.Enrich.Timeout,
		MaxTokens:         cfg.Enrich.MaxTokens,
		RequestsPerSecond: cfg.Enrich.RequestsPerSecond,
		Burst:             cfg.Enrich.Burst,
		CacheTTL:          cfg.Enrich.CacheTTL,
	}, logger)
}

func pipelineOptions() pipeline.Options {
	p := cfg.Pipeline
	return pipeline.Options{
		Concurrency:     p.Concurrency,
		ElementTimeout:  p.ElementTimeout,
		ReviewThreshold: p.ReviewThreshold,
		ContextRadius:   p.ContextRadius,
		ChunkTokens:     p.ChunkTokens,
		EventWindow:     p.EventWindow,
		Write: persist.Options{
			Timeout: p.WriteTimeout,
			Retries: p.WriteRetries,
			Backoff: p.WriteBackoff,
		},
	}
}

func newPipeline(st store.GraphStore, logger *slog.Logger) (*pipeline.Pipeline, error) {
	src, err := newEnricher(logger)
	if err != nil {
		return nil, err
	}
	if src == nil {
		logger.Debug("enrichment disabled, using pattern extraction only")
	}
	return pipeline.New(st, src, pipelineOptions(), logger), nil
}

func newReviewer(st store.GraphStore, logger *slog.Logger) *review.Manager {
	return review.NewManager(st, cfg.Pipeline.ReviewThreshold, cfg.Pipeline.EventWindow, logger)
}

// requireCase returns the --case flag or an error naming the command.
func requireCase(name string) (string, error) {
	id := strings.TrimSpace(caseID)
	if id == "" {
		return "", errors.New(name + ": --case is required")
	}
	return id, nil
}

func truncate(s string, maxLen int) string {
	return textutil.Truncate(textutil.CollapseSpace(s), maxLen)
}
