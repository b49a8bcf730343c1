// Package cmd provides the CLI commands for docrank. The CLI is thin
// glue over the retrieval pipeline: it loads configuration, wires the
// store and providers, and renders responses.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/docrank/docrank/internal/config"
	"github.com/docrank/docrank/internal/embed"
	"github.com/docrank/docrank/internal/llm"
	"github.com/docrank/docrank/internal/logging"
	"github.com/docrank/docrank/internal/retrieval"
	"github.com/docrank/docrank/internal/store"
)

var (
	configPath string
	debugMode  bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the docrank CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docrank",
		Short: "Multi-query retrieval and ranking over document indices",
		Long: `docrank answers a natural-language question from one or more
vector-searchable document indices: the question is expanded into query
variants, searched across every index concurrently, re-scored with
hybrid vector+keyword evidence, and assembled into a citation-ready
context block.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", ".docrank/config.yaml", "Config file path")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newIndicesCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func setupLogging(*cobra.Command, []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.FilePath = cfg.Logging.FilePath
	if debugMode {
		logCfg.Level = "debug"
	}

	_, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	return nil
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

// openStore opens the configured SQLite store, creating its directory
// if needed.
func openStore(cfg config.Config) (*store.SQLiteStore, error) {
	if dir := dirOf(cfg.Store.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	return store.NewSQLiteStore(cfg.Store.Path)
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == os.PathSeparator {
			return path[:i]
		}
	}
	return ""
}

// newEmbedder builds the provider stack: remote provider when a host is
// configured, courtesy-paced and degradation-aware, behind an LRU cache.
func newEmbedder(cfg config.Config) embed.Provider {
	var primary embed.Provider
	if cfg.Embeddings.Host != "" {
		p, err := embed.NewOllamaProvider(embed.OllamaConfig{
			Host:          cfg.Embeddings.Host,
			Model:         cfg.Embeddings.Model,
			Dimensions:    cfg.Embeddings.Dimensions,
			MaxInputChars: cfg.Embeddings.MaxInputChars,
		})
		if err != nil {
			slog.Warn("embedding provider misconfigured, using fallback embeddings", "error", err)
		} else {
			primary = p
		}
	}

	var provider embed.Provider = embed.NewResilientProvider(primary,
		time.Duration(cfg.Embeddings.CourtesyDelayMS)*time.Millisecond)
	if cfg.Embeddings.CacheSize > 0 {
		provider = embed.NewCachedProvider(provider, cfg.Embeddings.CacheSize)
	}
	return provider
}

// newCompletion returns the optional expansion provider, nil when no
// host is configured.
func newCompletion(cfg config.Config) llm.CompletionProvider {
	if cfg.Completion.Host == "" {
		return nil
	}
	c, err := llm.NewOllamaClient(llm.Config{
		Host:    cfg.Completion.Host,
		Model:   cfg.Completion.Model,
		Timeout: time.Duration(cfg.Completion.TimeoutMS) * time.Millisecond,
	})
	if err != nil {
		slog.Warn("completion provider misconfigured, using heuristic expansion", "error", err)
		return nil
	}
	return c
}

func pipelineOptions(cfg config.Config) retrieval.Options {
	return retrieval.Options{
		MaxQueries:      cfg.Retrieval.MaxQueries,
		TopKPerQuery:    cfg.Retrieval.TopKPerQuery,
		FinalTopK:       cfg.Retrieval.FinalTopK,
		WeightVector:    cfg.Retrieval.WeightVector,
		MaxDistance:     cfg.Retrieval.MaxDistance,
		MinKeywordScore: cfg.Retrieval.MinKeywordScore,
		ExpandContext:   cfg.Retrieval.ExpandContext,
		MaxResults:      cfg.Retrieval.MaxResults,
		Parallelism:     cfg.Retrieval.Parallelism,
	}
}
