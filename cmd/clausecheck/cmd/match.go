package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/clausecheck/internal/output"
	"github.com/Aman-CERP/clausecheck/internal/search"
)

type matchOptions struct {
	contractType string
	title        string
	subItems     []string
	jsonOutput   bool
}

func newMatchCmd() *cobra.Command {
	var opts matchOptions

	cmd := &cobra.Command{
		Use:   "match --type <contract-type> --sub-item <text>...",
		Short: "Match one article against the reference index",
		Long: `Match a single article, given as a title and its sub-items, against
the reference sections of a contract type and print the ranked matches.

Sub-items keep their enumerators ("①", "1.", "(a)"); they are stripped
before searching.`,
		Example: `  clausecheck match --type lease --title "보증금" \
    --sub-item "① 임차인은 보증금을 지급한다." --sub-item "② 보증금은 반환한다."`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMatch(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.contractType, "type", "", "Contract type to search (required)")
	cmd.Flags().StringVar(&opts.title, "title", "", "Article title")
	cmd.Flags().StringArrayVar(&opts.subItems, "sub-item", nil, "Article sub-item text (repeatable, required)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output matches as JSON")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("sub-item")

	return cmd
}

// matchJSON is the JSON shape of a match result; warnings are rendered as
// strings.
type matchJSON struct {
	Matches  []*search.ArticleMatch `json:"matches"`
	Skipped  []int                  `json:"skipped,omitempty"`
	Warnings []string               `json:"warnings,omitempty"`
}

func runMatch(ctx context.Context, cmd *cobra.Command, opts matchOptions) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg, _, cleanup, err := openIndex(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ref, err := reg.Get(opts.contractType)
	if err != nil {
		return err
	}

	matcher, err := search.NewMatcher(ref.Dense, ref.Sparse, ref.Units, cfg.SearchConfig())
	if err != nil {
		return err
	}

	res, err := matcher.MatchArticle(ctx, search.ArticleQuery{Title: opts.title, SubItems: opts.subItems})
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		v := matchJSON{Matches: res.Matches, Skipped: res.Skipped}
		for _, w := range res.Warnings {
			v.Warnings = append(v.Warnings, w.Error())
		}
		return out.JSON(v)
	}
	out.ArticleResult(res)
	return nil
}
