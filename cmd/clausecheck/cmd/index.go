package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/clausecheck/internal/index"
	"github.com/Aman-CERP/clausecheck/internal/output"
	"github.com/Aman-CERP/clausecheck/internal/store"
)

func newIndexCmd() *cobra.Command {
	var (
		force        bool
		contractType string
	)

	cmd := &cobra.Command{
		Use:   "index <reference.json>...",
		Short: "Index reference documents",
		Long: `Index reference documents for their contract type.

Each file is a JSON document with a document_id, a contract_type and its
pre-chunked units. Units are stored in units.db and added to the BM25 and
vector indices of the contract type, one pair per field (body and title).

Re-indexing a document replaces its units. Use --force to clear the whole
index first, for example after switching embedding models.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIndex(ctx, cmd, args, contractType, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Clear existing index data and rebuild from scratch")
	cmd.Flags().StringVar(&contractType, "type", "", "Override the contract type of every document")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, paths []string, contractType string, force bool) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Parse every file before touching the index.
	docs := make([]*index.Document, 0, len(paths))
	for _, path := range paths {
		doc, err := index.LoadDocumentFile(path)
		if err != nil {
			return err
		}
		if contractType != "" {
			doc.ContractType = contractType
		}
		if err := doc.Validate(); err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	builder, err := index.NewBuilder(ctx, cfg.BuilderConfig(force), embedder)
	if err != nil {
		return err
	}
	defer func() { _ = builder.Close() }()

	if force {
		out.Warning("Cleared existing index")
	}
	out.Statusf("📚", "Indexing %d document(s) into %s with %s", len(docs), cfg.Index.DataDir, embedder.ModelName())

	for i, doc := range docs {
		stats, err := builder.IngestReference(ctx, doc)
		if err != nil {
			return err
		}
		out.Progress(i+1, len(docs), doc.ID)
		out.Successf("%s (%s): %d units in %d sections, %d body / %d title vectors",
			stats.DocumentID, stats.ContractType, stats.Units, stats.Parents,
			stats.Embedded[store.FieldBody], stats.Embedded[store.FieldTitle])
	}

	out.Newline()
	out.Success(fmt.Sprintf("Index ready at %s", cfg.Index.DataDir))
	return nil
}
