// Package cmd provides the CLI commands for clausecheck.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/clausecheck/internal/config"
	"github.com/Aman-CERP/clausecheck/internal/embed"
	cerrors "github.com/Aman-CERP/clausecheck/internal/errors"
	"github.com/Aman-CERP/clausecheck/internal/index"
	"github.com/Aman-CERP/clausecheck/internal/logging"
	"github.com/Aman-CERP/clausecheck/pkg/version"
)

// ErrSectionsMissing is returned by check --fail-on-missing when the
// report has missing reference sections.
var ErrSectionsMissing = errors.New("reference sections missing")

// Global flags
var (
	debugMode      bool
	configPath     string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the clausecheck CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clausecheck",
		Short: "Check contracts against reference documents",
		Long: `clausecheck compares a contract with the reference documents of its
contract type. Every article is matched to reference sections with hybrid
(dense + BM25) search, and reference sections that no article covers are
re-checked against the whole contract before being reported missing.

Index reference documents first, then check contracts:

  clausecheck index standard-lease.json
  clausecheck check my-lease.json`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: startLogging,
		PersistentPostRun: func(*cobra.Command, []string) { stopLogging() },
	}

	cmd.SetVersionTemplate("clausecheck version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.clausecheck/logs/")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user config, then ./"+config.ProjectFileName+")")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newMatchCmd())
	cmd.AddCommand(newTypesCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints errors for the terminal.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil && !errors.Is(err, ErrSectionsMissing) {
		fmt.Fprint(os.Stderr, cerrors.FormatForCLI(err))
	}
	stopLogging()
	return err
}

// startLogging enables debug logging when --debug is set. Otherwise logging
// follows the loaded configuration, see loadConfig.
func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	cleanup, err := logging.SetupDefault(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.Info("debug_logging_enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("version", version.Version))
	return nil
}

func stopLogging() {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
}

// loadConfig loads the configuration named by --config, or the layered
// configuration for the working directory.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			return nil, cerrors.IOError("failed to get working directory", wdErr)
		}
		cfg, err = config.Load(wd)
	}
	if err != nil {
		return nil, err
	}

	if !debugMode {
		cleanup, err := logging.SetupDefault(cfg.Logging)
		if err != nil {
			return nil, cerrors.ConfigError("failed to setup logging", err)
		}
		stopLogging()
		loggingCleanup = cleanup
	}
	return cfg, nil
}

// newEmbedder creates the configured embedder.
func newEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	embedder, err := embed.NewEmbedder(ctx, cfg.EmbedderOptions())
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeEmbeddingFailed, "failed to create embedder", err).
			WithSuggestion("check embeddings.provider, or use the static provider offline")
	}
	return embedder, nil
}

// openIndex loads the reference registry with the configured embedder.
// The returned cleanup closes both.
func openIndex(ctx context.Context, cfg *config.Config) (*index.Registry, embed.Embedder, func(), error) {
	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	reg, err := index.Open(ctx, cfg.LoadConfig(), embedder)
	if err != nil {
		_ = embedder.Close()
		return nil, nil, nil, err
	}
	return reg, embedder, func() {
		_ = reg.Close()
		_ = embedder.Close()
	}, nil
}
