package main

import (
	"github.com/spf13/cobra"

	"github.com/genericrobot77/meds-job/internal/model"
	"github.com/genericrobot77/meds-job/internal/pipeline"
)

var (
	enrichListing string
	enrichNoKG    bool
	enrichNoAgent bool
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Create records for new products, run automated lookups and write reports",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("enrich"); err != nil {
			return err
		}
		ctx := cmd.Context()

		path, err := resolveListing(enrichListing)
		if err != nil {
			return err
		}

		fields := model.DefaultFields()
		sources := pipeline.Sources{Reference: loadReference(ctx, cfg)}
		if !enrichNoKG {
			sources.KnowledgeGraph = newKnowledgeGraph(cfg, fields)
		}
		if !enrichNoAgent {
			sources.Agent = newAgent(cfg, fields)
		}

		summary, err := newRunner(cfg, path, fields, sources).Enrich(ctx)
		printRunSummary(cmd.OutOrStdout(), summary)
		return err
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichListing, "listing", "", "listing file (default: newest match of paths.listing)")
	enrichCmd.Flags().BoolVar(&enrichNoKG, "no-kg", false, "skip the knowledge-graph lookup")
	enrichCmd.Flags().BoolVar(&enrichNoAgent, "no-agent", false, "skip the research agent")
	rootCmd.AddCommand(enrichCmd)
}
