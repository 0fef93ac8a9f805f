package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/mosaic/internal/locator"
)

var (
	locateID   string
	locateSize string
)

type locateOutput struct {
	ID       string `json:"id,omitempty"`
	Filename string `json:"filename"`
	Size     string `json:"size"`
	Path     string `json:"path"`
}

var locateCmd = &cobra.Command{
	Use:   "locate [filename]",
	Short: "Print the on-disk path of an item's image",
	Long: `Derive the sharded path of an image from its filename, or from an item id
looked up in the store with --id. The path must be safe and readable.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if (locateID == "") == (len(args) == 0) {
			return fmt.Errorf("provide either a filename or --id")
		}

		eng, cleanup, err := newEngine(ctx, nil)
		if err != nil {
			return err
		}
		defer cleanup()

		out := locateOutput{ID: locateID, Size: string(locator.ParseSize(locateSize))}
		if locateID != "" {
			name, err := eng.LookupFilename(ctx, locateID)
			if err != nil {
				return fmt.Errorf("item %q: %w", locateID, err)
			}
			out.Filename = name
		} else {
			out.Filename = args[0]
		}

		path, err := eng.Locator().Locate(out.Filename, locator.Size(out.Size))
		if err != nil {
			return err
		}
		out.Path = path

		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), out)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	locateCmd.Flags().StringVar(&locateID, "id", "", "Look the filename up by item id")
	locateCmd.Flags().StringVarP(&locateSize, "size", "s", "full", "Image size: mini or full")
}
