package main

import (
	"github.com/spf13/cobra"

	"github.com/genericrobot77/meds-job/internal/listing"
	"github.com/genericrobot77/meds-job/internal/model"
	"github.com/genericrobot77/meds-job/internal/report"
)

var (
	summaryListing   string
	summaryResources bool
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show research progress for the listing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if summaryResources {
			return report.WriteResources(cmd.OutOrStdout())
		}
		if err := cfg.Validate("report"); err != nil {
			return err
		}
		path, err := resolveListing(summaryListing)
		if err != nil {
			return err
		}

		fields := model.DefaultFields()
		concepts, err := listing.Load(cmd.Context(), path, listingOptions(cfg))
		if err != nil {
			return err
		}
		doc, err := newStore(cfg, fields).Load()
		if err != nil {
			return err
		}
		return report.NewGenerator(fields, cfg.Research.ListDelimiter).WriteSummary(cmd.OutOrStdout(), concepts, doc)
	},
}

func init() {
	summaryCmd.Flags().StringVar(&summaryListing, "listing", "", "listing file (default: newest match of paths.listing)")
	summaryCmd.Flags().BoolVar(&summaryResources, "resources", false, "list research resource URLs instead")
	rootCmd.AddCommand(summaryCmd)
}
