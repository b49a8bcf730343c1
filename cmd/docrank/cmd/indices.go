package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indices",
		Short: "List known indices, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			names, err := st.ListIndices(cmd.Context())
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No indices yet. Use 'docrank index' to create one.")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
