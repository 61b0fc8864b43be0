package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/clausecheck/internal/output"
)

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List indexed contract types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			reg, _, cleanup, err := openIndex(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			for _, ct := range reg.ContractTypes() {
				ref, err := reg.Get(ct)
				if err != nil {
					return err
				}
				out.Status("📄", fmt.Sprintf("%s (%d sections)", ct, len(ref.Parents)))
			}
			return nil
		},
	}
}
