package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the bucket and file tables",
	Long: `Create the bucket and file tables in the configured store if they do not
exist yet. Existing rows are left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		if err := st.EnsureSchema(ctx); err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), map[string]string{
				"driver":       cfg.Store.Driver,
				"bucket_table": cfg.Store.BucketTable,
				"file_table":   cfg.Store.FileTable,
			})
		}
		PrintSuccess(fmt.Sprintf("Schema ready (%s, %s)", cfg.Store.BucketTable, cfg.Store.FileTable))
		return nil
	},
}
