package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/mosaic/internal/engine"
	"github.com/danieljhkim/mosaic/internal/raster"
)

// errDegraded is returned by --strict builds that fell back or failed somewhere.
var errDegraded = errors.New("artifact degraded")

var atlasStrict bool

var atlasCmd = &cobra.Command{
	Use:   "atlas <bucket>",
	Short: "Build the thumbnail atlas for a bucket",
	Long: `Compose the thumbnails of every item in a bucket into square sheets and
stitch the sheets into the final atlas files.

Items whose image is missing, unreadable or unsafe are drawn with the
placeholder image and reported as fallbacks.`,
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

		artifact, err := eng.BuildAtlas(ctx, bucket)
		if err != nil {
			return err
		}
		return reportArtifact(cmd, artifact, atlasStrict)
	},
}

func init() {
	atlasCmd.Flags().BoolVar(&atlasStrict, "strict", false, "Exit with an error when any tile falls back or any step fails")
}

// reportArtifact prints a build result and applies --strict.
func reportArtifact(cmd *cobra.Command, a *engine.Artifact, strict bool) error {
	if jsonOutput {
		if err := outputJSON(cmd.OutOrStdout(), a); err != nil {
			return err
		}
	} else {
		printArtifact(a)
	}
	if strict && a.Degraded() {
		return fmt.Errorf("%s %s: %w", a.Kind, a.Bucket, errDegraded)
	}
	return nil
}

func printArtifact(a *engine.Artifact) {
	PrintSuccess(fmt.Sprintf("Built %s for bucket %s", a.Kind, a.Bucket))
	PrintLabelValue("Side", strconv.Itoa(a.Side))
	PrintLabelValue("Tiles", strconv.Itoa(a.Tiles))
	PrintLabelValue("Sheets", strconv.Itoa(a.Sheets))
	PrintLabelValue("Duration", a.Duration.String())

	if len(a.Files) == 0 {
		PrintEmptyState("No files produced")
	} else {
		PrintSection("Files")
		rows := make([][]string, 0, len(a.Files))
		for _, f := range a.Files {
			rows = append(rows, []string{f, a.Digests[f]})
		}
		PrintTable([]string{"FILE", "BLAKE3"}, rows)
	}

	printDegradation(a.Fallbacks, a.Failures, "tile fell back", "tiles fell back")
}

// printDegradation lists fallbacks (only with --verbose) and failures.
func printDegradation(fallbacks []engine.Fallback, failures []raster.Failure, singular, plural string) {
	if len(fallbacks) > 0 {
		PrintWarning(PrintCount(len(fallbacks), singular, plural))
		if verbose {
			items := make([]string, 0, len(fallbacks))
			for _, fb := range fallbacks {
				items = append(items, fb.ID+": "+fb.Reason)
			}
			PrintList(items, 1)
		}
	}
	if len(failures) > 0 {
		PrintWarning(PrintCount(len(failures), "step failed", "steps failed"))
		items := make([]string, 0, len(failures))
		for _, f := range failures {
			items = append(items, fmt.Sprintf("%s %s: %s", f.Stage, f.Target, f.Err))
		}
		PrintList(items, 1)
	}
}
