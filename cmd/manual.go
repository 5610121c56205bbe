package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/genericrobot77/meds-job/internal/model"
	"github.com/genericrobot77/meds-job/internal/pipeline"
)

var manualListing string

var manualCmd = &cobra.Command{
	Use:   "manual",
	Short: "Research products interactively, saving after each product",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("manual"); err != nil {
			return err
		}
		ctx := cmd.Context()

		path, err := resolveListing(manualListing)
		if err != nil {
			return err
		}

		fields := model.DefaultFields()
		runner := newRunner(cfg, path, fields, pipeline.Sources{Reference: loadReference(ctx, cfg)})
		summary, _, err := runner.Manual(ctx, os.Stdin, cmd.OutOrStdout())
		printRunSummary(cmd.OutOrStdout(), summary)
		return err
	},
}

func init() {
	manualCmd.Flags().StringVar(&manualListing, "listing", "", "listing file (default: newest match of paths.listing)")
	rootCmd.AddCommand(manualCmd)
}
