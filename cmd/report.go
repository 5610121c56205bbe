package main

import (
	"github.com/spf13/cobra"

	"github.com/genericrobot77/meds-job/internal/model"
	"github.com/genericrobot77/meds-job/internal/pipeline"
)

var reportListing string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the aggregate and tabular reports from the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("report"); err != nil {
			return err
		}
		path, err := resolveListing(reportListing)
		if err != nil {
			return err
		}

		summary, err := newRunner(cfg, path, model.DefaultFields(), pipeline.Sources{}).Report(cmd.Context())
		printRunSummary(cmd.OutOrStdout(), summary)
		return err
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportListing, "listing", "", "listing file (default: newest match of paths.listing)")
	rootCmd.AddCommand(reportCmd)
}
