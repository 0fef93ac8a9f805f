package cli

import (
	"github.com/spf13/cobra"
)

var (
	pixelsImport bool
	pixelsStrict bool
)

var pixelsCmd = &cobra.Command{
	Use:   "pixels <bucket>",
	Short: "Build the pixel summary for a bucket",
	Long: `Draw one solid cell per item, coloured with the item's dominant palette
colour, and stack the rows into the final pixel summary.

With --import the bucket's colour-extraction files are imported first.`,
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

		if pixelsImport {
			res, err := eng.ImportColors(ctx, bucket)
			if err != nil {
				return err
			}
			if !jsonOutput {
				printImport(res)
				PrintInfo("")
			}
		}

		artifact, err := eng.BuildPixels(ctx, bucket)
		if err != nil {
			return err
		}
		return reportArtifact(cmd, artifact, pixelsStrict)
	},
}

func init() {
	pixelsCmd.Flags().BoolVar(&pixelsImport, "import", false, "Import colour files for the bucket before building")
	pixelsCmd.Flags().BoolVar(&pixelsStrict, "strict", false, "Exit with an error when any cell falls back or any step fails")
}
