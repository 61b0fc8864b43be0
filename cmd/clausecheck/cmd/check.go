package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/clausecheck/internal/check"
	"github.com/Aman-CERP/clausecheck/internal/index"
	"github.com/Aman-CERP/clausecheck/internal/output"
	"github.com/Aman-CERP/clausecheck/internal/reconcile"
	"github.com/Aman-CERP/clausecheck/internal/store"
)

type checkOptions struct {
	contractType  string
	jsonOutput    bool
	verbose       bool
	failOnMissing bool
}

func newCheckCmd() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check <contract.json>",
		Short: "Check a contract against its reference documents",
		Long: `Check a contract against the indexed reference documents of its
contract type.

The forward pass matches every article of the contract to reference
sections. Reference sections left unmatched go through the reverse pass,
which searches the whole contract with the reference units' embeddings.
Sections still unconfirmed are reported missing.

Exit status is 2 with --fail-on-missing when any section is missing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCheck(ctx, cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.contractType, "type", "", "Contract type (default: the document's contract_type)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the report as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show scores and reverse-pass candidates")
	cmd.Flags().BoolVar(&opts.failOnMissing, "fail-on-missing", false, "Exit with status 2 when sections are missing")

	return cmd
}

func runCheck(ctx context.Context, cmd *cobra.Command, path string, opts checkOptions) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	doc, err := index.LoadDocumentFile(path)
	if err != nil {
		return err
	}
	if opts.contractType != "" {
		doc.ContractType = opts.contractType
	}

	reg, embedder, cleanup, err := openIndex(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	user, err := index.LoadUserDocument(ctx, doc, embedder, cfg.Embeddings.BatchSize)
	if err != nil {
		return err
	}

	checker, err := check.New(reg, cfg.Verifier(), cfg.CheckConfig())
	if err != nil {
		return err
	}

	report, err := checker.Run(ctx, check.Request{
		ContractType: doc.ContractType,
		DocumentID:   doc.ID,
		Units:        doc.Units,
		Embeddings:   reconcile.StoreEmbeddings{Store: user, Field: store.FieldBody},
	})
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		if err := out.JSON(report); err != nil {
			return err
		}
	} else {
		out.Report(report, opts.verbose)
	}

	if opts.failOnMissing && report.Summary.Missing > 0 {
		return ErrSectionsMissing
	}
	return nil
}
