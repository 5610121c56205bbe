// Package agent researches concepts with a language-model agent and parses
// its JSON replies.
package agent

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/genericrobot77/meds-job/internal/adapter"
	"github.com/genericrobot77/meds-job/internal/model"
)

// DefaultBatchSize bounds the concepts sent in one prompt.
const DefaultBatchSize = 10

// errTruncated marks a reply cut off at the token limit. It is malformed by
// construction.
var errTruncated = eris.Wrap(adapter.ErrMalformed, "agent: reply truncated")

// Config holds agent settings.
type Config struct {
	BatchSize int
	Timeout   time.Duration
	Prompt    PromptOptions
	// Now supplies the researched date. Defaults to time.Now.
	Now func() time.Time
}

// Adapter implements adapter.Source over a Completer.
type Adapter struct {
	completer Completer
	fields    *model.FieldRegistry
	cfg       Config
}

// New creates an agent adapter.
func New(completer Completer, fields *model.FieldRegistry, cfg Config) *Adapter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Adapter{completer: completer, fields: fields, cfg: cfg}
}

// Name implements adapter.Source.
func (a *Adapter) Name() model.Source { return model.SourceAgent }

// Lookup sends concepts in batches. A failed or unparsable batch yields
// results for that batch only; later batches still run.
func (a *Adapter) Lookup(ctx context.Context, concepts []model.Concept) ([]adapter.Result, error) {
	out := make([]adapter.Result, 0, len(concepts))
	for start := 0; start < len(concepts); start += a.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return out, eris.Wrap(err, "agent: lookup cancelled")
		}
		end := min(start+a.cfg.BatchSize, len(concepts))
		out = append(out, a.lookupBatch(ctx, concepts[start:end])...)
	}
	return out, nil
}

func (a *Adapter) lookupBatch(ctx context.Context, batch []model.Concept) []adapter.Result {
	opts := a.cfg.Prompt
	if opts.Today == "" {
		opts.Today = a.cfg.Now().Format(time.DateOnly)
	}
	prompt := BuildPrompt(batch, a.fields, opts)

	callCtx, cancel := adapter.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	start := time.Now()
	text, err := a.completer.Complete(callCtx, SystemPrompt, prompt)
	if err != nil {
		if !eris.Is(err, adapter.ErrMalformed) {
			err = eris.Wrap(adapter.ErrUnavailable, err.Error())
		}
		zap.L().Warn("agent: batch failed",
			zap.Int("batch_size", len(batch)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return adapter.FailAll(a.Name(), batch, err)
	}

	results, err := Parse(text, a.fields, a.Name(), batch)
	if err != nil {
		zap.L().Warn("agent: malformed batch discarded",
			zap.Int("batch_size", len(batch)),
			zap.Error(err),
		)
		return adapter.FailAll(a.Name(), batch, err)
	}

	zap.L().Info("agent: batch complete",
		zap.Int("batch_size", len(batch)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results
}

// Parse converts an agent reply into one result per concept. Any parse
// failure rejects the whole reply with an error wrapping
// adapter.ErrMalformed.
func Parse(text string, fields *model.FieldRegistry, src model.Source, concepts []model.Concept) ([]adapter.Result, error) {
	resp, err := adapter.ParseResponse(text)
	if err != nil {
		return nil, err
	}
	return adapter.Results(fields, src, concepts, resp), nil
}
