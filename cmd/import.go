package main

import (
	"github.com/spf13/cobra"

	"github.com/genericrobot77/meds-job/internal/model"
	"github.com/genericrobot77/meds-job/internal/pipeline"
)

var (
	importFile    string
	importListing string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Merge saved agent research results into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("import"); err != nil {
			return err
		}
		ctx := cmd.Context()

		path, err := resolveListing(importListing)
		if err != nil {
			return err
		}

		fields := model.DefaultFields()
		runner := newRunner(cfg, path, fields, pipeline.Sources{Reference: loadReference(ctx, cfg)})
		summary, err := runner.Import(ctx, importFile)
		printRunSummary(cmd.OutOrStdout(), summary)
		return err
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "agent results JSON (required)")
	importCmd.Flags().StringVar(&importListing, "listing", "", "listing file (default: newest match of paths.listing)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
