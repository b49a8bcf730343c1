// Package config loads docrank configuration from a YAML file with
// environment variable overrides (DOCRANK_*). Env vars win over file
// values, file values win over defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete docrank configuration.
type Config struct {
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Completion CompletionConfig `yaml:"completion"`
	Store      StoreConfig      `yaml:"store"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// RetrievalConfig holds the pipeline defaults. The distance and keyword
// thresholds are empirically tuned values, kept configurable rather
// than baked in.
type RetrievalConfig struct {
	// MaxQueries caps the variant set per question, original included.
	MaxQueries int `yaml:"max_queries"`

	// TopKPerQuery bounds the candidate pool per variant.
	TopKPerQuery int `yaml:"top_k_per_query"`

	// FinalTopK bounds the merged ranked list.
	FinalTopK int `yaml:"final_top_k"`

	// WeightVector is the vector share of the hybrid score (0-1).
	WeightVector float64 `yaml:"weight_vector"`

	// MaxDistance is the vector distance acceptance threshold.
	MaxDistance float64 `yaml:"max_distance"`

	// MinKeywordScore is the raw keyword score acceptance threshold.
	MinKeywordScore float64 `yaml:"min_keyword_score"`

	// MaxResults bounds the assembled chunk list, adjacency included.
	MaxResults int `yaml:"max_results"`

	// ExpandContext pulls in adjacent chunks for continuity.
	ExpandContext bool `yaml:"expand_context"`

	// Parallelism bounds concurrent variant-level work.
	Parallelism int `yaml:"parallelism"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Host is the provider endpoint. Empty means fallback-only mode:
	// deterministic pseudo-embeddings, no network calls.
	Host string `yaml:"host"`

	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`

	// MaxInputChars truncates input text (head truncation) before submission.
	MaxInputChars int `yaml:"max_input_chars"`

	// CourtesyDelayMS is the minimum spacing between provider calls.
	CourtesyDelayMS int `yaml:"courtesy_delay_ms"`

	// CacheSize is the LRU embedding cache size (0 disables caching).
	CacheSize int `yaml:"cache_size"`
}

// CompletionConfig configures the optional text-completion provider
// used for query expansion.
type CompletionConfig struct {
	// Host is the provider endpoint. Empty disables LLM expansion and
	// the heuristic fallback runs instead.
	Host string `yaml:"host"`

	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// StoreConfig configures the chunk store used by the CLI.
type StoreConfig struct {
	// Path is the SQLite database path.
	Path string `yaml:"path"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	FilePath string `yaml:"file_path"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Retrieval: RetrievalConfig{
			MaxQueries:      5,
			TopKPerQuery:    10,
			FinalTopK:       10,
			WeightVector:    0.7,
			MaxDistance:     0.3,
			MinKeywordScore: 2.0,
			MaxResults:      10,
			Parallelism:     4,
		},
		Embeddings: EmbeddingsConfig{
			Model:           "nomic-embed-text",
			Dimensions:      768,
			MaxInputChars:   8000,
			CourtesyDelayMS: 500,
			CacheSize:       1000,
		},
		Completion: CompletionConfig{
			Model:     "qwen3:0.6b",
			MaxTokens: 256,
			TimeoutMS: 10000,
		},
		Store: StoreConfig{
			Path: ".docrank/chunks.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path (optional) and applies env
// overrides. A missing file is not an error; defaults are used.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Fall through to defaults.
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c Config) Validate() error {
	if c.Retrieval.WeightVector < 0 || c.Retrieval.WeightVector > 1 {
		return fmt.Errorf("retrieval.weight_vector must be in [0,1], got %v", c.Retrieval.WeightVector)
	}
	if c.Retrieval.MaxQueries < 1 {
		return fmt.Errorf("retrieval.max_queries must be >= 1, got %d", c.Retrieval.MaxQueries)
	}
	if c.Retrieval.MaxDistance < 0 {
		return fmt.Errorf("retrieval.max_distance must be >= 0, got %v", c.Retrieval.MaxDistance)
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be > 0, got %d", c.Embeddings.Dimensions)
	}
	return nil
}

// applyEnvOverrides applies DOCRANK_* environment variables.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	setFloat := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				*dst = f
			}
		}
	}

	setString("DOCRANK_EMBEDDINGS_HOST", &cfg.Embeddings.Host)
	setString("DOCRANK_EMBEDDINGS_MODEL", &cfg.Embeddings.Model)
	setInt("DOCRANK_EMBEDDINGS_DIMENSIONS", &cfg.Embeddings.Dimensions)
	setString("DOCRANK_COMPLETION_HOST", &cfg.Completion.Host)
	setString("DOCRANK_COMPLETION_MODEL", &cfg.Completion.Model)
	setString("DOCRANK_STORE_PATH", &cfg.Store.Path)
	setString("DOCRANK_LOG_LEVEL", &cfg.Logging.Level)
	setFloat("DOCRANK_WEIGHT_VECTOR", &cfg.Retrieval.WeightVector)
	setFloat("DOCRANK_MAX_DISTANCE", &cfg.Retrieval.MaxDistance)
	setInt("DOCRANK_MAX_QUERIES", &cfg.Retrieval.MaxQueries)
}
