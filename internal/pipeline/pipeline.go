// Package pipeline runs the research phases over a listing: record
// creation, automated enrichment, import, manual entry and reporting.
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/genericrobot77/meds-job/internal/adapter"
	"github.com/genericrobot77/meds-job/internal/listing"
	"github.com/genericrobot77/meds-job/internal/model"
	"github.com/genericrobot77/meds-job/internal/reconcile"
	"github.com/genericrobot77/meds-job/internal/report"
	"github.com/genericrobot77/meds-job/internal/resilience"
	"github.com/genericrobot77/meds-job/internal/store"
)

// Config holds runner settings.
type Config struct {
	// ListingPath is the listing to research.
	ListingPath string
	Listing     listing.Options

	ReportsDir      string
	AggregateFormat string
	TabularFormat   string
	ListDelimiter   string

	// BreakerThreshold is the consecutive unavailable calls after which a
	// source is skipped for the rest of the run.
	BreakerThreshold int
	// AgentBatchSize is the number of concepts per agent call.
	AgentBatchSize int

	// Now supplies report timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Sources are the adapters used by Enrich. Any may be nil.
type Sources struct {
	// Reference is consulted once, when a record is created.
	Reference      adapter.Source
	KnowledgeGraph adapter.Source
	Agent          adapter.Source
}

// Runner executes pipeline phases against one store.
type Runner struct {
	cfg     Config
	fields  *model.FieldRegistry
	store   store.Store
	sources Sources
	merger  *reconcile.Merger
	gen     *report.Generator
}

// New creates a Runner.
func New(cfg Config, fields *model.FieldRegistry, st store.Store, sources Sources) *Runner {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AgentBatchSize <= 0 {
		cfg.AgentBatchSize = 10
	}
	return &Runner{
		cfg:     cfg,
		fields:  fields,
		store:   st,
		sources: sources,
		merger:  reconcile.NewMerger(fields),
		gen:     report.NewGenerator(fields, cfg.ListDelimiter),
	}
}

// run carries the state of one invocation.
type run struct {
	summary  *model.RunSummary
	concepts []model.Concept
	doc      *model.Document
}

// trackPhase times fn, logs its outcome and appends it to the summary.
func (r *run) trackPhase(name string, fn func() (*model.PhaseResult, error)) error {
	log := zap.L().With(zap.String("phase", name))

	start := time.Now()
	phaseResult, fnErr := fn()
	duration := time.Since(start).Milliseconds()

	if phaseResult == nil {
		phaseResult = &model.PhaseResult{}
	}
	phaseResult.Name = name
	phaseResult.Duration = duration

	switch {
	case fnErr != nil:
		phaseResult.Status = model.PhaseStatusFailed
		phaseResult.Error = fnErr.Error()
		log.Error("pipeline: phase failed", zap.Int64("duration_ms", duration), zap.Error(fnErr))
	case phaseResult.Status == model.PhaseStatusSkipped:
		log.Info("pipeline: phase skipped")
	default:
		phaseResult.Status = model.PhaseStatusComplete
		log.Info("pipeline: phase complete", zap.Int64("duration_ms", duration))
	}

	r.summary.Phases = append(r.summary.Phases, *phaseResult)
	return fnErr
}

// load reads the listing and the store. Both failures are fatal and happen
// before anything is written.
func (p *Runner) load(ctx context.Context) (*run, error) {
	concepts, err := listing.Load(ctx, p.cfg.ListingPath, p.cfg.Listing)
	if err != nil {
		return nil, err
	}
	doc, err := p.store.Load()
	if err != nil {
		return nil, err
	}
	return &run{
		summary: &model.RunSummary{
			Concepts:    len(concepts),
			NewConcepts: len(model.NewConcepts(concepts)),
			Sources:     make(map[model.Source]model.SourceTally),
		},
		concepts: concepts,
		doc:      doc,
	}, nil
}

func (p *Runner) checkpoint(r *run, label string) error {
	if err := p.store.Save(r.doc); err != nil {
		return eris.Wrapf(err, "pipeline: checkpoint after %s", label)
	}
	zap.L().Info("pipeline: checkpoint saved",
		zap.String("after", label),
		zap.String("path", p.store.Path()),
		zap.Int("records", r.doc.Len()),
	)
	return nil
}

// Enrich creates records for new concepts, runs the knowledge-graph and
// agent sources over unfinalized records, and writes both reports.
func (p *Runner) Enrich(ctx context.Context) (*model.RunSummary, error) {
	r, err := p.load(ctx)
	if err != nil {
		return nil, err
	}

	if err := r.trackPhase("create", func() (*model.PhaseResult, error) {
		return p.createRecords(ctx, r)
	}); err != nil {
		return r.summary, err
	}

	if err := r.trackPhase("knowledge_graph", func() (*model.PhaseResult, error) {
		return p.enrichWith(ctx, r, p.sources.KnowledgeGraph, 1, func(rec *model.Record) bool {
			return !rec.Finalized() && !rec.AutoLookupAttempted
		})
	}); err != nil {
		return r.summary, err
	}
	if err := p.checkpoint(r, "knowledge_graph"); err != nil {
		return r.summary, err
	}

	if err := r.trackPhase("agent", func() (*model.PhaseResult, error) {
		return p.enrichWith(ctx, r, p.sources.Agent, p.cfg.AgentBatchSize, func(rec *model.Record) bool {
			return !rec.Finalized()
		})
	}); err != nil {
		return r.summary, err
	}
	if err := p.checkpoint(r, "agent"); err != nil {
		return r.summary, err
	}

	return r.summary, p.writeReports(r)
}

// createRecords inserts default records for new concepts. Newly created
// records are checked against the reference source.
func (p *Runner) createRecords(ctx context.Context, r *run) (*model.PhaseResult, error) {
	var created []model.Concept
	for _, c := range model.NewConcepts(r.concepts) {
		if _, ok := r.doc.CreateIfAbsent(c, p.fields); ok {
			created = append(created, c)
		}
	}
	r.summary.Created = len(created)

	meta := map[string]any{"created": len(created)}
	if p.sources.Reference != nil && len(created) > 0 {
		results, err := p.sources.Reference.Lookup(ctx, created)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: reference lookup")
		}
		meta["reference_applied"] = p.apply(r, p.sources.Reference.Name(), results)
	}
	return &model.PhaseResult{Metadata: meta}, nil
}

// enrichWith runs src over the new concepts whose records satisfy want.
// Source failures are tallied, never returned; only cancellation is.
func (p *Runner) enrichWith(ctx context.Context, r *run, src adapter.Source, step int, want func(*model.Record) bool) (*model.PhaseResult, error) {
	if src == nil {
		return &model.PhaseResult{Status: model.PhaseStatusSkipped}, nil
	}

	var targets []model.Concept
	for _, c := range model.NewConcepts(r.concepts) {
		if rec := r.doc.Get(c.ID); rec != nil && want(rec) {
			targets = append(targets, c)
		}
	}
	if len(targets) == 0 {
		return &model.PhaseResult{
			Status:   model.PhaseStatusSkipped,
			Metadata: map[string]any{"targets": 0},
		}, nil
	}

	guarded := resilience.Guard(src, p.cfg.BreakerThreshold, step)
	results, err := guarded.Lookup(ctx, targets)
	applied := p.apply(r, src.Name(), results)
	meta := map[string]any{
		"targets": len(targets),
		"applied": applied,
		"circuit": guarded.Breaker.State().String(),
	}
	if err != nil {
		return &model.PhaseResult{Metadata: meta}, eris.Wrapf(err, "pipeline: %s lookup", src.Name())
	}
	return &model.PhaseResult{Metadata: meta}, nil
}

// apply tallies results and merges the mergeable ones. It returns the
// number of fields applied.
func (p *Runner) apply(r *run, src model.Source, results []adapter.Result) int {
	tally := r.summary.Sources[src]
	before := tally.Applied
	for _, res := range results {
		switch res.Outcome {
		case adapter.Found:
			tally.Found++
		case adapter.NoData:
			tally.NoData++
		case adapter.Unavailable:
			if resilience.Skipped(res) {
				tally.Skipped++
			} else {
				tally.Unavailable++
			}
		case adapter.Malformed:
			tally.Malformed++
		}

		if !res.Outcome.Mergeable() {
			if res.Err != nil && !resilience.Skipped(res) {
				zap.L().Warn("pipeline: source result not merged",
					zap.String("source", string(src)),
					zap.String("concept_id", res.ConceptID),
					zap.String("outcome", string(res.Outcome)),
					zap.Error(res.Err),
				)
			}
			continue
		}

		rec := r.doc.Get(res.ConceptID)
		if rec == nil {
			continue
		}
		tally.Applied += len(p.merger.Merge(rec, res.Candidates).Applied())
	}
	r.summary.Sources[src] = tally
	return tally.Applied - before
}

// Report writes both reports from the store without changing it.
func (p *Runner) Report(ctx context.Context) (*model.RunSummary, error) {
	r, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	return r.summary, p.writeReports(r)
}

// writeReports renders the aggregate and tabular reports for the listing.
func (p *Runner) writeReports(r *run) error {
	return r.trackPhase("report", func() (*model.PhaseResult, error) {
		meta := report.NewMetadata(p.cfg.ListingPath, r.concepts, p.cfg.Now())
		agg := p.gen.BuildAggregate(r.concepts, r.doc, meta)

		aggPath := report.OutputPath(p.cfg.ReportsDir, p.cfg.ListingPath, orDefault(p.cfg.AggregateFormat, report.FormatJSON))
		if err := report.WriteFile(aggPath, func(w io.Writer) error {
			return report.WriteAggregate(w, agg, orDefault(p.cfg.AggregateFormat, report.FormatJSON))
		}); err != nil {
			return nil, err
		}

		tabPath := report.OutputPath(p.cfg.ReportsDir, p.cfg.ListingPath, orDefault(p.cfg.TabularFormat, report.FormatCSV))
		rows := p.gen.BuildTabular(r.concepts, r.doc)
		if err := report.WriteFile(tabPath, func(w io.Writer) error {
			return report.WriteTabular(w, rows, orDefault(p.cfg.TabularFormat, report.FormatCSV))
		}); err != nil {
			return nil, err
		}

		r.summary.Outputs = append(r.summary.Outputs, aggPath, tabPath)
		return &model.PhaseResult{Metadata: map[string]any{
			"aggregate": aggPath,
			"tabular":   tabPath,
			"records":   agg.Metadata.RecordCount,
		}}, nil
	})
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Pending returns the new concepts whose records are not finalized. A
// concept without a record counts as pending.
func (p *Runner) Pending(ctx context.Context) ([]model.Concept, error) {
	r, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Concept
	for _, c := range model.NewConcepts(r.concepts) {
		if !r.doc.Get(c.ID).Finalized() {
			out = append(out, c)
		}
	}
	return out, nil
}
