package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/mosaic/internal/engine"
)

var importColorsCmd = &cobra.Command{
	Use:   "import-colors <bucket>",
	Short: "Import colour-extraction files into the store",
	Long: `Read <colors_dir>/<id>.json for every item in the bucket and store the
parsed palettes. Missing, empty and invalid files are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		eng, cleanup, err := newEngine(ctx, nil)
		if err != nil {
			return err
		}
		defer cleanup()

		bucket, err := resolveBucket(ctx, eng, args[0])
		if err != nil {
			return err
		}

		res, err := eng.ImportColors(ctx, bucket)
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), res)
		}
		printImport(res)
		return nil
	},
}

func printImport(res *engine.ImportResult) {
	PrintSuccess(fmt.Sprintf("Imported %s for bucket %s",
		PrintCount(res.Imported, "palette", "palettes"), res.Bucket))
	PrintLabelValue("Batches", strconv.Itoa(res.Batches))
	PrintLabelValue("Duration", res.Duration.String())
	printDegradation(res.Skipped, res.Failures, "colour file skipped", "colour files skipped")
}
