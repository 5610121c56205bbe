package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/genericrobot77/meds-job/internal/adapter/agent"
	"github.com/genericrobot77/meds-job/internal/model"
	"github.com/genericrobot77/meds-job/internal/pipeline"
)

var (
	promptListing   string
	promptBatchSize int
	promptOutDir    string
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Write research prompts for unresearched products",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("prompt"); err != nil {
			return err
		}
		path, err := resolveListing(promptListing)
		if err != nil {
			return err
		}

		fields := model.DefaultFields()
		pending, err := newRunner(cfg, path, fields, pipeline.Sources{}).Pending(cmd.Context())
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "All products have been researched!")
			return nil
		}

		size := promptBatchSize
		if size <= 0 {
			size = cfg.Agent.BatchSize
		}
		dir := promptOutDir
		if dir == "" {
			dir = cfg.Paths.Prompts
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "prompt: create %s", dir)
		}

		opts := promptOptions(cfg)
		for n, start := 1, 0; start < len(pending); n, start = n+1, start+size {
			batch := pending[start:min(start+size, len(pending))]
			out := filepath.Join(dir, fmt.Sprintf("research-prompt-%02d.md", n))
			body := agent.SystemPrompt + "\n\n" + agent.BuildPrompt(batch, fields, opts)
			if err := os.WriteFile(out, []byte(body), 0o644); err != nil {
				return eris.Wrapf(err, "prompt: write %s", out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d products)\n", out, len(batch))
		}

		zap.L().Info("prompts written", zap.Int("products", len(pending)), zap.String("dir", dir))
		return nil
	},
}

func init() {
	promptCmd.Flags().StringVar(&promptListing, "listing", "", "listing file (default: newest match of paths.listing)")
	promptCmd.Flags().IntVar(&promptBatchSize, "batch-size", 0, "products per prompt (default from config)")
	promptCmd.Flags().StringVar(&promptOutDir, "out", "", "output directory (default: paths.prompts)")
	rootCmd.AddCommand(promptCmd)
}
