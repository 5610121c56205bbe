// Package resilience stops calling a research source for the rest of a run
// once it has failed repeatedly. It never retries.
package resilience

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/genericrobot77/meds-job/internal/adapter"
	"github.com/genericrobot77/meds-job/internal/model"
)

// DefaultThreshold is the number of consecutive unavailable calls that
// opens the circuit.
const DefaultThreshold = 5

// ErrCircuitOpen marks results for concepts that were never sent because the
// source had already failed too often.
var ErrCircuitOpen = eris.Wrap(adapter.ErrUnavailable, "resilience: circuit open")

// CircuitState is the state of a breaker.
type CircuitState int

const (
	// CircuitClosed passes calls through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls for the rest of the run.
	CircuitOpen
)

func (s CircuitState) String() string {
	if s == CircuitOpen {
		return "open"
	}
	return "closed"
}

// Breaker counts consecutive unavailable calls. It is not safe for
// concurrent use.
type Breaker struct {
	threshold   int
	consecutive int
	state       CircuitState
}

// NewBreaker creates a breaker. A non-positive threshold uses
// DefaultThreshold.
func NewBreaker(threshold int) *Breaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Breaker{threshold: threshold}
}

// State returns the current state.
func (b *Breaker) State() CircuitState { return b.state }

// Allow reports whether a call may be made.
func (b *Breaker) Allow() bool { return b.state == CircuitClosed }

// Record notes the result of one call and reports whether it opened the
// circuit.
func (b *Breaker) Record(unavailable bool) bool {
	if !unavailable {
		b.consecutive = 0
		return false
	}
	b.consecutive++
	if b.state == CircuitClosed && b.consecutive >= b.threshold {
		b.state = CircuitOpen
		return true
	}
	return false
}

// Guarded wraps a source with a breaker. Concepts are sent in chunks of
// Step; each chunk is one call for the breaker.
type Guarded struct {
	Source  adapter.Source
	Breaker *Breaker
	Step    int
}

// Guard wraps src with a fresh breaker. Step is the number of concepts per
// call, 1 for sources that look up one concept at a time.
func Guard(src adapter.Source, threshold, step int) *Guarded {
	if step <= 0 {
		step = 1
	}
	return &Guarded{Source: src, Breaker: NewBreaker(threshold), Step: step}
}

// Name implements adapter.Source.
func (g *Guarded) Name() model.Source { return g.Source.Name() }

// Lookup implements adapter.Source. Once the circuit opens, the remaining
// concepts are reported unavailable without being sent.
func (g *Guarded) Lookup(ctx context.Context, concepts []model.Concept) ([]adapter.Result, error) {
	out := make([]adapter.Result, 0, len(concepts))
	for start := 0; start < len(concepts); start += g.Step {
		end := min(start+g.Step, len(concepts))
		chunk := concepts[start:end]

		if !g.Breaker.Allow() {
			out = append(out, adapter.FailAll(g.Name(), chunk, ErrCircuitOpen)...)
			continue
		}

		results, err := g.Source.Lookup(ctx, chunk)
		out = append(out, results...)
		if err != nil {
			return out, err
		}
		if g.Breaker.Record(allUnavailable(results)) {
			zap.L().Warn("resilience: source disabled for this run",
				zap.String("source", string(g.Name())),
				zap.Int("threshold", g.Breaker.threshold),
				zap.Int("remaining", len(concepts)-end),
			)
		}
	}
	return out, nil
}

func allUnavailable(results []adapter.Result) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if r.Outcome != adapter.Unavailable {
			return false
		}
	}
	return true
}

// Skipped reports whether a result was produced by an open circuit.
func Skipped(r adapter.Result) bool {
	return r.Err != nil && eris.Is(r.Err, ErrCircuitOpen)
}
