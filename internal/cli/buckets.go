package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "List buckets by item count",
	Long:  `Display every bucket with its item count, largest first.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		eng, cleanup, err := newEngine(ctx, nil)
		if err != nil {
			return err
		}
		defer cleanup()

		buckets, err := eng.ListBuckets(ctx)
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), buckets)
		}

		if len(buckets) == 0 {
			PrintEmptyState("No buckets found")
			return nil
		}

		rows := make([][]string, 0, len(buckets))
		for _, b := range buckets {
			rows = append(rows, []string{b.Key, strconv.Itoa(b.Count())})
		}
		PrintTable([]string{"BUCKET", "ITEMS"}, rows)
		return nil
	},
}
