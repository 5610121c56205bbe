// Package adapter defines the contract shared by research sources: a lookup
// over a batch of concepts that yields one explicit-outcome result per
// concept.
package adapter

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/genericrobot77/meds-job/internal/model"
)

// Outcome is the result class of one lookup for one concept.
type Outcome string

const (
	// Found means the source returned at least one usable field.
	Found Outcome = "found"
	// NoData means the source answered but knew nothing useful.
	NoData Outcome = "no_data"
	// Unavailable means the source timed out or failed at the transport layer.
	Unavailable Outcome = "unavailable"
	// Malformed means the reply could not be parsed; nothing from the batch
	// may be merged.
	Malformed Outcome = "malformed"
)

// Mergeable reports whether candidates with this outcome may be merged.
func (o Outcome) Mergeable() bool {
	return o == Found || o == NoData
}

// Sentinel errors carried by results.
var (
	ErrUnavailable = eris.New("adapter: source unavailable")
	ErrMalformed   = eris.New("adapter: malformed response")
)

// Result is one source's answer for one concept.
type Result struct {
	ConceptID  string
	Outcome    Outcome
	Candidates model.Candidates
	// Unknown lists response keys that matched no research field.
	Unknown []string
	Err     error
}

// Source looks up research fields for a batch of concepts. Implementations
// return exactly one result per input concept, in input order, and report
// failures through the result outcome. A non-nil error is reserved for a
// cancelled context.
type Source interface {
	Name() model.Source
	Lookup(ctx context.Context, concepts []model.Concept) ([]Result, error)
}

// FailAll returns one result per concept carrying err. The outcome is
// Malformed when err wraps ErrMalformed and Unavailable otherwise.
func FailAll(src model.Source, concepts []model.Concept, err error) []Result {
	outcome := Classify(err)
	out := make([]Result, len(concepts))
	for i, c := range concepts {
		out[i] = Result{
			ConceptID:  c.ID,
			Outcome:    outcome,
			Candidates: model.NewCandidates(src),
			Err:        err,
		}
	}
	return out
}

// Classify maps an adapter error to an outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return NoData
	case eris.Is(err, ErrMalformed):
		return Malformed
	default:
		return Unavailable
	}
}

// WithTimeout bounds one adapter call. A non-positive d leaves ctx as is.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
