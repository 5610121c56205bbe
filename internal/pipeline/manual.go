package pipeline

import (
	"context"
	"io"

	"github.com/genericrobot77/meds-job/internal/adapter/manual"
	"github.com/genericrobot77/meds-job/internal/model"
)

// Manual runs an interactive entry session over unfinalized records. The
// store is saved after every finished or skipped product and again when the
// session ends, including on quit and end of input.
func (p *Runner) Manual(ctx context.Context, in io.Reader, out io.Writer) (*model.RunSummary, manual.Summary, error) {
	r, err := p.load(ctx)
	if err != nil {
		return nil, manual.Summary{}, err
	}

	if err := r.trackPhase("create", func() (*model.PhaseResult, error) {
		return p.createRecords(ctx, r)
	}); err != nil {
		return r.summary, manual.Summary{}, err
	}

	var sum manual.Summary
	err = r.trackPhase("manual", func() (*model.PhaseResult, error) {
		session := manual.NewSession(r.doc, r.concepts, p.fields, p.cfg.Now)
		var runErr error
		sum, runErr = manual.Run(session, in, out, func() error {
			return p.checkpoint(r, "manual product")
		})
		meta := map[string]any{
			"total":     sum.Total,
			"completed": sum.Completed,
			"skipped":   sum.Skipped,
			"quit":      sum.Quit,
		}
		return &model.PhaseResult{Metadata: meta}, runErr
	})

	// Partial input is still persisted.
	if saveErr := p.checkpoint(r, "manual"); saveErr != nil {
		return r.summary, sum, saveErr
	}
	if err != nil {
		return r.summary, sum, err
	}

	tally := r.summary.Sources[model.SourceManual]
	tally.Found += sum.Completed
	tally.Skipped += sum.Skipped
	r.summary.Sources[model.SourceManual] = tally

	return r.summary, sum, p.writeReports(r)
}
