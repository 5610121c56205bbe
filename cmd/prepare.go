package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/genericrobot77/meds-job/internal/listing"
)

var (
	prepareInput     string
	prepareOutputDir string
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Filter a raw change report into a medicinal product listing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		src := prepareInput
		if src == "" {
			latest, err := listing.Latest(cfg.Paths.ChangeReport)
			if err != nil {
				return err
			}
			src = latest
		}

		dir := prepareOutputDir
		if dir == "" {
			dir = filepath.Dir(cfg.Paths.Listing)
		}
		dst := filepath.Join(dir, listing.PreparedName(src))

		res, err := listing.Prepare(cmd.Context(), src, dst, listingOptions(cfg))
		if err != nil {
			return err
		}

		zap.L().Info("prepare complete",
			zap.String("source", res.Source),
			zap.String("output", res.Output),
			zap.Int("total", res.Total),
			zap.Int("kept", res.Kept),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "Kept %d of %d rows\nWrote %s\n", res.Kept, res.Total, res.Output)
		return nil
	},
}

func init() {
	prepareCmd.Flags().StringVar(&prepareInput, "input", "", "raw change report (default: newest match of paths.change_report)")
	prepareCmd.Flags().StringVar(&prepareOutputDir, "output-dir", "", "directory for the listing (default: directory of paths.listing)")
	rootCmd.AddCommand(prepareCmd)
}
