// Package config loads clausecheck configuration.
//
// Values are applied in order of increasing precedence:
//
//  1. Hardcoded defaults (NewConfig)
//  2. User config ($XDG_CONFIG_HOME/clausecheck/config.yaml)
//  3. Project config (.clausecheck.yaml in the working directory)
//  4. Environment variables (CLAUSECHECK_*)
//
// Each YAML file is decoded onto the result of the previous layer, so a
// file only overrides the keys it names, explicit zeros included.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/clausecheck/internal/check"
	"github.com/Aman-CERP/clausecheck/internal/embed"
	cerrors "github.com/Aman-CERP/clausecheck/internal/errors"
	"github.com/Aman-CERP/clausecheck/internal/index"
	"github.com/Aman-CERP/clausecheck/internal/logging"
	"github.com/Aman-CERP/clausecheck/internal/reconcile"
	"github.com/Aman-CERP/clausecheck/internal/search"
	"github.com/Aman-CERP/clausecheck/internal/store"
	"github.com/Aman-CERP/clausecheck/internal/verify"
)

// CurrentVersion is the configuration schema version.
const CurrentVersion = 1

// ProjectFileName is the per-directory configuration file.
const ProjectFileName = ".clausecheck.yaml"

// Config is the complete clausecheck configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Match      MatchConfig      `yaml:"match" json:"match"`
	Reconcile  ReconcileConfig  `yaml:"reconcile" json:"reconcile"`
	Verify     VerifyConfig     `yaml:"verify" json:"verify"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Logging    logging.Config   `yaml:"logging" json:"logging"`
}

// MatchConfig configures fusion and article matching.
type MatchConfig struct {
	// Field weights, must sum to 1.0.
	TextWeight  float64 `yaml:"text_weight" json:"text_weight"`
	TitleWeight float64 `yaml:"title_weight" json:"title_weight"`

	// Mode weights, must sum to 1.0.
	DenseWeight  float64 `yaml:"dense_weight" json:"dense_weight"`
	SparseWeight float64 `yaml:"sparse_weight" json:"sparse_weight"`

	DenseTopK      int `yaml:"dense_top_k" json:"dense_top_k"`
	SparseTopK     int `yaml:"sparse_top_k" json:"sparse_top_k"`
	PerSubItemTopK int `yaml:"per_sub_item_top_k" json:"per_sub_item_top_k"`
	FinalTopK      int `yaml:"final_top_k" json:"final_top_k"`

	ScoreThreshold   float64 `yaml:"score_threshold" json:"score_threshold"`
	ThresholdEnabled bool    `yaml:"threshold_enabled" json:"threshold_enabled"`

	LookupTimeout time.Duration `yaml:"lookup_timeout" json:"lookup_timeout"`
	Parallelism   int           `yaml:"parallelism" json:"parallelism"`

	// ArticleParallelism bounds user articles matched at once.
	ArticleParallelism int `yaml:"article_parallelism" json:"article_parallelism"`
}

// ReconcileConfig configures the reverse pass.
type ReconcileConfig struct {
	Workers       int `yaml:"workers" json:"workers"`
	MaxCandidates int `yaml:"max_candidates" json:"max_candidates"`
	PerUnitTopK   int `yaml:"per_unit_top_k" json:"per_unit_top_k"`
	SearchTopK    int `yaml:"search_top_k" json:"search_top_k"`
}

// VerifyConfig configures the score-threshold verifier.
type VerifyConfig struct {
	ForwardThreshold float64 `yaml:"forward_threshold" json:"forward_threshold"`
	ReverseThreshold float64 `yaml:"reverse_threshold" json:"reverse_threshold"`
}

// IndexConfig configures the reference index on disk.
type IndexConfig struct {
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// BM25Backend is "sqlite" (default) or "bleve".
	BM25Backend string `yaml:"bm25_backend" json:"bm25_backend"`

	// HNSW settings. Metric is "l2" or "cos".
	Metric   string `yaml:"metric" json:"metric"`
	M        int    `yaml:"m" json:"m"`
	EfSearch int    `yaml:"ef_search" json:"ef_search"`

	// Lookup guards.
	BreakerMaxFailures  int           `yaml:"breaker_max_failures" json:"breaker_max_failures"`
	BreakerResetTimeout time.Duration `yaml:"breaker_reset_timeout" json:"breaker_reset_timeout"`
	RateLimit           float64       `yaml:"rate_limit" json:"rate_limit"`
	RateBurst           int           `yaml:"rate_burst" json:"rate_burst"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "static" (default, offline) or "ollama".
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Host       string `yaml:"host" json:"host"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	// CacheSize is the query embedding LRU size; negative disables it.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	m := search.DefaultMatchConfig()
	r := reconcile.DefaultConfig()
	vs := store.DefaultVectorStoreConfig(0)

	return &Config{
		Version: CurrentVersion,
		Match: MatchConfig{
			TextWeight:         m.TextWeight,
			TitleWeight:        m.TitleWeight,
			DenseWeight:        m.DenseWeight,
			SparseWeight:       m.SparseWeight,
			DenseTopK:          m.DenseTopK,
			SparseTopK:         m.SparseTopK,
			PerSubItemTopK:     m.PerSubItemTopK,
			FinalTopK:          m.FinalTopK,
			ScoreThreshold:     m.ScoreThreshold,
			ThresholdEnabled:   m.ThresholdEnabled,
			LookupTimeout:      m.LookupTimeout,
			Parallelism:        m.Parallelism,
			ArticleParallelism: check.DefaultArticleParallelism,
		},
		Reconcile: ReconcileConfig{
			Workers:       r.Workers,
			MaxCandidates: r.MaxCandidates,
			PerUnitTopK:   r.PerUnitTopK,
			SearchTopK:    r.SearchTopK,
		},
		Verify: VerifyConfig{
			ForwardThreshold: verify.DefaultForwardThreshold,
			ReverseThreshold: verify.DefaultReverseThreshold,
		},
		Index: IndexConfig{
			DataDir:             DefaultDataDir(),
			BM25Backend:         string(store.BM25BackendSQLite),
			Metric:              vs.Metric,
			M:                   vs.M,
			EfSearch:            vs.EfSearch,
			BreakerMaxFailures:  5,
			BreakerResetTimeout: 30 * time.Second,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  string(embed.ProviderStatic),
			Model:     embed.DefaultOllamaModel,
			Host:      embed.DefaultOllamaHost,
			BatchSize: 32,
		},
		Logging: logging.DefaultConfig(),
	}
}

// DefaultDataDir returns ~/.clausecheck/index, or a temp-dir fallback.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".clausecheck", "index")
	}
	return filepath.Join(home, ".clausecheck", "index")
}

// GetUserConfigPath returns the path to the user configuration file:
// $XDG_CONFIG_HOME/clausecheck/config.yaml, or ~/.config/clausecheck/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "clausecheck", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "clausecheck", "config.yaml")
	}
	return filepath.Join(home, ".config", "clausecheck", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load builds the configuration for dir. See the package doc for the
// precedence order.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if path := filepath.Join(dir, ProjectFileName); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile builds the configuration from defaults, one file and the
// environment.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()
	if !fileExists(path) {
		return nil, cerrors.New(cerrors.ErrCodeConfigNotFound, "config file not found: "+path, nil)
	}
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML decodes path onto c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return cerrors.IOError("failed to read config file "+path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return cerrors.ConfigError("failed to parse config file "+path, err).
			WithSuggestion("check the YAML syntax, or regenerate with 'clausecheck config init --force'")
	}
	return nil
}

// envBinding binds one CLAUSECHECK_* variable to a field.
type envBinding struct {
	name string
	set  func(string) error
}

func envFloat(name string, dst *float64) envBinding {
	return envBinding{name, func(v string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return err
		}
		*dst = f
		return nil
	}}
}

func envInt(name string, dst *int) envBinding {
	return envBinding{name, func(v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}}
}

func envBool(name string, dst *bool) envBinding {
	return envBinding{name, func(v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}}
}

func envDuration(name string, dst *time.Duration) envBinding {
	return envBinding{name, func(v string) error {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}}
}

func envString(name string, dst *string) envBinding {
	return envBinding{name, func(v string) error {
		*dst = v
		return nil
	}}
}

// applyEnvOverrides applies CLAUSECHECK_* environment variables. A value
// that does not parse is a config error.
func (c *Config) applyEnvOverrides() error {
	bindings := []envBinding{
		envFloat("CLAUSECHECK_TEXT_WEIGHT", &c.Match.TextWeight),
		envFloat("CLAUSECHECK_TITLE_WEIGHT", &c.Match.TitleWeight),
		envFloat("CLAUSECHECK_DENSE_WEIGHT", &c.Match.DenseWeight),
		envFloat("CLAUSECHECK_SPARSE_WEIGHT", &c.Match.SparseWeight),
		envInt("CLAUSECHECK_DENSE_TOP_K", &c.Match.DenseTopK),
		envInt("CLAUSECHECK_SPARSE_TOP_K", &c.Match.SparseTopK),
		envInt("CLAUSECHECK_FINAL_TOP_K", &c.Match.FinalTopK),
		envFloat("CLAUSECHECK_SCORE_THRESHOLD", &c.Match.ScoreThreshold),
		envBool("CLAUSECHECK_THRESHOLD_ENABLED", &c.Match.ThresholdEnabled),
		envDuration("CLAUSECHECK_LOOKUP_TIMEOUT", &c.Match.LookupTimeout),
		envInt("CLAUSECHECK_RECONCILE_WORKERS", &c.Reconcile.Workers),
		envString("CLAUSECHECK_DATA_DIR", &c.Index.DataDir),
		envString("CLAUSECHECK_BM25_BACKEND", &c.Index.BM25Backend),
		envString("CLAUSECHECK_EMBEDDINGS_PROVIDER", &c.Embeddings.Provider),
		// CLAUSECHECK_EMBEDDER is an alias for CLAUSECHECK_EMBEDDINGS_PROVIDER
		envString("CLAUSECHECK_EMBEDDER", &c.Embeddings.Provider),
		envString("CLAUSECHECK_EMBEDDINGS_MODEL", &c.Embeddings.Model),
		envString("CLAUSECHECK_OLLAMA_HOST", &c.Embeddings.Host),
		envString("CLAUSECHECK_LOG_LEVEL", &c.Logging.Level),
	}

	for _, b := range bindings {
		v, ok := os.LookupEnv(b.name)
		if !ok || v == "" {
			continue
		}
		if err := b.set(v); err != nil {
			return cerrors.ConfigError(fmt.Sprintf("invalid %s=%q", b.name, v), err)
		}
	}
	return nil
}

// Validate validates the configuration. Errors carry the search package's
// codes so the CLI reports weights and top-k problems the same way the
// engine does.
func (c *Config) Validate() error {
	if err := c.SearchConfig().Validate(); err != nil {
		return err
	}
	if err := c.ReconcileConfig().Validate(); err != nil {
		return err
	}

	for name, v := range map[string]float64{
		"verify.forward_threshold": c.Verify.ForwardThreshold,
		"verify.reverse_threshold": c.Verify.ReverseThreshold,
	} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return cerrors.ConfigError(fmt.Sprintf("%s must be between 0 and 1, got %v", name, v), nil)
		}
	}

	switch store.BM25Backend(c.Index.BM25Backend) {
	case store.BM25BackendSQLite, store.BM25BackendBleve:
	default:
		return cerrors.ConfigError("index.bm25_backend must be 'sqlite' or 'bleve', got "+c.Index.BM25Backend, nil)
	}
	if c.Index.Metric != "l2" && c.Index.Metric != "cos" {
		return cerrors.ConfigError("index.metric must be 'l2' or 'cos', got "+c.Index.Metric, nil)
	}
	if c.Index.M < 0 || c.Index.EfSearch < 0 || c.Index.RateLimit < 0 {
		return cerrors.ConfigError("index.m, index.ef_search and index.rate_limit must be non-negative", nil)
	}

	if !embed.IsValidProvider(c.Embeddings.Provider) {
		return cerrors.ConfigError(fmt.Sprintf("embeddings.provider must be one of %s, got %s",
			strings.Join(embed.ValidProviders(), ", "), c.Embeddings.Provider), nil)
	}
	if c.Embeddings.Dimensions < 0 {
		return cerrors.ConfigError("embeddings.dimensions must be non-negative", nil)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return cerrors.ConfigError("logging.level must be 'debug', 'info', 'warn', or 'error', got "+c.Logging.Level, nil)
	}

	return nil
}

// SearchConfig converts the match section to the engine's configuration.
func (c *Config) SearchConfig() search.MatchConfig {
	return search.MatchConfig{
		TextWeight:       c.Match.TextWeight,
		TitleWeight:      c.Match.TitleWeight,
		DenseWeight:      c.Match.DenseWeight,
		SparseWeight:     c.Match.SparseWeight,
		DenseTopK:        c.Match.DenseTopK,
		SparseTopK:       c.Match.SparseTopK,
		PerSubItemTopK:   c.Match.PerSubItemTopK,
		FinalTopK:        c.Match.FinalTopK,
		ScoreThreshold:   c.Match.ScoreThreshold,
		ThresholdEnabled: c.Match.ThresholdEnabled,
		LookupTimeout:    c.Match.LookupTimeout,
		Parallelism:      c.Match.Parallelism,
	}
}

// ReconcileConfig converts the reconcile section, taking the vector index
// settings from the index section.
func (c *Config) ReconcileConfig() reconcile.Config {
	return reconcile.Config{
		Workers:       c.Reconcile.Workers,
		MaxCandidates: c.Reconcile.MaxCandidates,
		PerUnitTopK:   c.Reconcile.PerUnitTopK,
		SearchTopK:    c.Reconcile.SearchTopK,
		Metric:        c.Index.Metric,
		M:             c.Index.M,
		EfSearch:      c.Index.EfSearch,
	}
}

// CheckConfig returns the checker configuration.
func (c *Config) CheckConfig() check.Config {
	return check.Config{
		Match:              c.SearchConfig(),
		Reconcile:          c.ReconcileConfig(),
		ArticleParallelism: c.Match.ArticleParallelism,
	}
}

// Verifier returns the score-threshold verifier.
func (c *Config) Verifier() *verify.ScoreVerifier {
	return &verify.ScoreVerifier{Forward: c.Verify.ForwardThreshold, Reverse: c.Verify.ReverseThreshold}
}

// EmbedderOptions returns the embedder factory options.
func (c *Config) EmbedderOptions() embed.Options {
	return embed.Options{
		Provider:   embed.ParseProvider(c.Embeddings.Provider),
		Model:      c.Embeddings.Model,
		Host:       c.Embeddings.Host,
		Dimensions: c.Embeddings.Dimensions,
		CacheSize:  c.Embeddings.CacheSize,
	}
}

// BuilderConfig returns the index builder configuration.
func (c *Config) BuilderConfig(force bool) index.BuilderConfig {
	return index.BuilderConfig{
		DataDir:     c.Index.DataDir,
		BM25Backend: c.Index.BM25Backend,
		Metric:      c.Index.Metric,
		M:           c.Index.M,
		EfSearch:    c.Index.EfSearch,
		BatchSize:   c.Embeddings.BatchSize,
		Force:       force,
	}
}

// LoadConfig returns the index loader configuration.
func (c *Config) LoadConfig() index.LoadConfig {
	return index.LoadConfig{
		DataDir:             c.Index.DataDir,
		BreakerMaxFailures:  c.Index.BreakerMaxFailures,
		BreakerResetTimeout: c.Index.BreakerResetTimeout,
		RateLimit:           c.Index.RateLimit,
		RateBurst:           c.Index.RateBurst,
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return cerrors.InternalError("failed to marshal config", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cerrors.IOError("failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return cerrors.IOError("failed to write config file", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
