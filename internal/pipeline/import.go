package pipeline

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/genericrobot77/meds-job/internal/adapter"
	"github.com/genericrobot77/meds-job/internal/adapter/agent"
	"github.com/genericrobot77/meds-job/internal/listing"
	"github.com/genericrobot77/meds-job/internal/model"
)

// Import merges agent results saved in a file. A reply that cannot be
// parsed is rejected as a whole: the store is not written and the rejection
// is recorded in the summary. Reports are written either way.
func (p *Runner) Import(ctx context.Context, path string) (*model.RunSummary, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, eris.Wrapf(listing.ErrMissingInput, "pipeline: import file %s", path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read import file %s", path)
	}

	r, err := p.load(ctx)
	if err != nil {
		return nil, err
	}

	concepts := model.NewConcepts(r.concepts)
	var results []adapter.Result
	parseErr := r.trackPhase("parse", func() (*model.PhaseResult, error) {
		var err error
		results, err = agent.Parse(string(data), p.fields, model.SourceImport, concepts)
		if err != nil {
			return nil, err
		}
		return &model.PhaseResult{Metadata: map[string]any{
			"path":  path,
			"found": countFound(results),
		}}, nil
	})
	if parseErr != nil {
		tally := r.summary.Sources[model.SourceImport]
		tally.Malformed += len(concepts)
		r.summary.Sources[model.SourceImport] = tally
		zap.L().Warn("pipeline: import rejected, store unchanged",
			zap.String("path", path),
			zap.Error(parseErr),
		)
		return r.summary, p.writeReports(r)
	}

	if err := r.trackPhase("create", func() (*model.PhaseResult, error) {
		return p.createRecords(ctx, r)
	}); err != nil {
		return r.summary, err
	}

	if err := r.trackPhase("import", func() (*model.PhaseResult, error) {
		return &model.PhaseResult{Metadata: map[string]any{
			"applied": p.apply(r, model.SourceImport, results),
		}}, nil
	}); err != nil {
		return r.summary, err
	}

	if err := p.checkpoint(r, "import"); err != nil {
		return r.summary, err
	}
	return r.summary, p.writeReports(r)
}

func countFound(results []adapter.Result) int {
	n := 0
	for _, res := range results {
		if res.Outcome == adapter.Found {
			n++
		}
	}
	return n
}
