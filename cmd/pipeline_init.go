package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/genericrobot77/meds-job/internal/adapter"
	"github.com/genericrobot77/meds-job/internal/adapter/agent"
	"github.com/genericrobot77/meds-job/internal/adapter/knowledgegraph"
	"github.com/genericrobot77/meds-job/internal/adapter/reference"
	"github.com/genericrobot77/meds-job/internal/config"
	"github.com/genericrobot77/meds-job/internal/listing"
	"github.com/genericrobot77/meds-job/internal/model"
	"github.com/genericrobot77/meds-job/internal/pipeline"
	"github.com/genericrobot77/meds-job/internal/store"
	"github.com/genericrobot77/meds-job/pkg/anthropic"
	"github.com/genericrobot77/meds-job/pkg/perplexity"
	"github.com/genericrobot77/meds-job/pkg/wikidata"
)

// resolveListing returns path when set, else the newest listing matching
// the configured pattern.
func resolveListing(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return listing.Latest(cfg.Paths.Listing)
}

func listingOptions(c *config.Config) listing.Options {
	return listing.Options{SemanticTag: c.Listing.SemanticTag, URIBase: c.Listing.URIBase}
}

func newStore(c *config.Config, fields *model.FieldRegistry) *store.FileStore {
	return store.New(c.Paths.Store, fields)
}

// newRunner wires a pipeline runner for the listing.
func newRunner(c *config.Config, listingPath string, fields *model.FieldRegistry, sources pipeline.Sources) *pipeline.Runner {
	return pipeline.New(pipeline.Config{
		ListingPath:      listingPath,
		Listing:          listingOptions(c),
		ReportsDir:       c.Paths.Reports,
		AggregateFormat:  c.Report.AggregateFormat,
		TabularFormat:    c.Report.TabularFormat,
		ListDelimiter:    c.Research.ListDelimiter,
		BreakerThreshold: c.Research.BreakerThreshold,
		AgentBatchSize:   c.Agent.BatchSize,
	}, fields, newStore(c, fields), sources)
}

// loadReference loads the Beers list. A missing list disables the source.
func loadReference(ctx context.Context, c *config.Config) adapter.Source {
	if c.Paths.Beers == "" {
		return nil
	}
	if _, err := os.Stat(c.Paths.Beers); err != nil {
		zap.L().Warn("beers criteria list not found, reference lookup disabled", zap.String("path", c.Paths.Beers))
		return nil
	}
	beers, err := reference.LoadBeers(ctx, c.Paths.Beers)
	if err != nil {
		zap.L().Warn("beers criteria list unreadable, reference lookup disabled", zap.Error(err))
		return nil
	}
	return beers
}

func newKnowledgeGraph(c *config.Config, fields *model.FieldRegistry) adapter.Source {
	if !c.KnowledgeGraph.Enabled {
		return nil
	}
	client := wikidata.NewClient(
		wikidata.WithEndpoint(c.KnowledgeGraph.Endpoint),
		wikidata.WithUserAgent(c.KnowledgeGraph.UserAgent),
		wikidata.WithRateLimit(c.KnowledgeGraph.RateLimit),
	)
	return knowledgegraph.New(client, fields, knowledgegraph.Config{
		Timeout:       time.Duration(c.KnowledgeGraph.TimeoutSecs) * time.Second,
		LabelFallback: c.KnowledgeGraph.LabelFallback,
	})
}

func promptOptions(c *config.Config) agent.PromptOptions {
	return agent.PromptOptions{
		Today:                 time.Now().Format(time.DateOnly),
		PrimaryJurisdiction:   c.Research.PrimaryJurisdiction,
		SecondaryJurisdiction: c.Research.SecondaryJurisdiction,
	}
}

func newCompleter(c *config.Config) agent.Completer {
	switch c.Agent.Provider {
	case "anthropic":
		var opts []anthropic.Option
		if c.Anthropic.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(c.Anthropic.BaseURL))
		}
		return &agent.AnthropicCompleter{
			Client:    anthropic.NewClient(c.Anthropic.Key, opts...),
			Model:     c.Anthropic.Model,
			MaxTokens: c.Anthropic.MaxTokens,
		}
	case "perplexity":
		return &agent.PerplexityCompleter{
			Client:  perplexity.NewClient(c.Perplexity.Key, perplexity.WithBaseURL(c.Perplexity.BaseURL)),
			Model:   c.Perplexity.Model,
			Domains: agent.SearchDomains,
		}
	default:
		return nil
	}
}

func newAgent(c *config.Config, fields *model.FieldRegistry) adapter.Source {
	completer := newCompleter(c)
	if completer == nil {
		return nil
	}
	return agent.New(completer, fields, agent.Config{
		BatchSize: c.Agent.BatchSize,
		Timeout:   time.Duration(c.Agent.TimeoutSecs) * time.Second,
		Prompt:    promptOptions(c),
	})
}

// printRunSummary writes per-source outcome counts and output paths.
func printRunSummary(w io.Writer, s *model.RunSummary) {
	if s == nil {
		return
	}
	fmt.Fprintf(w, "Concepts: %d (new %d, records created %d)\n", s.Concepts, s.NewConcepts, s.Created)

	sources := make([]string, 0, len(s.Sources))
	for src := range s.Sources {
		sources = append(sources, string(src))
	}
	sort.Strings(sources)
	for _, src := range sources {
		t := s.Sources[model.Source(src)]
		fmt.Fprintf(w, "  %-16s found %d, no data %d, unavailable %d, malformed %d, skipped %d, fields applied %d\n",
			src, t.Found, t.NoData, t.Unavailable, t.Malformed, t.Skipped, t.Applied)
	}
	for _, out := range s.Outputs {
		fmt.Fprintf(w, "Wrote %s\n", out)
	}

	zap.L().Info("run complete",
		zap.Int("concepts", s.Concepts),
		zap.Int("new_concepts", s.NewConcepts),
		zap.Int("created", s.Created),
		zap.Any("sources", s.Sources),
		zap.Strings("outputs", s.Outputs),
	)
}
