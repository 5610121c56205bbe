// Package reference answers the geriatric-risk field from a local Beers
// Criteria list.
package reference

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/genericrobot77/meds-job/internal/adapter"
	"github.com/genericrobot77/meds-job/internal/fetcher"
	"github.com/genericrobot77/meds-job/internal/model"
	"github.com/genericrobot77/meds-job/internal/normalize"
)

// Column names in the reference file.
const (
	ColLabel = "prefLabel"
	ColBeers = "Beers"
)

// Values written to the geriatric-risk field.
const (
	Listed    = "Listed"
	NotListed = "Not listed"
)

// Beers maps folded product labels to their listing status.
type Beers struct {
	entries map[string]bool
}

// NewBeers builds a list from label → listed pairs.
func NewBeers(entries map[string]bool) *Beers {
	b := &Beers{entries: make(map[string]bool, len(entries))}
	for label, listed := range entries {
		if key := normalize.Label(label); key != "" {
			b.entries[key] = listed
		}
	}
	return b
}

// LoadBeers reads a CSV or XLSX reference list. A later row for the same
// label replaces an earlier one.
func LoadBeers(ctx context.Context, path string) (*Beers, error) {
	tbl, err := fetcher.ReadFile(ctx, path)
	if err != nil {
		return nil, eris.Wrapf(err, "reference: load %s", path)
	}
	if !tbl.Has(ColLabel) || !tbl.Has(ColBeers) {
		return nil, eris.Errorf("reference: %s needs %s and %s columns", path, ColLabel, ColBeers)
	}

	b := &Beers{entries: make(map[string]bool, len(tbl.Rows))}
	for _, row := range tbl.Rows {
		key := normalize.Label(tbl.Value(row, ColLabel))
		if key == "" {
			continue
		}
		b.entries[key] = strings.EqualFold(tbl.Value(row, ColBeers), "TRUE")
	}
	zap.L().Info("reference: beers criteria loaded",
		zap.String("path", path),
		zap.Int("entries", len(b.entries)),
	)
	return b, nil
}

// Len returns the number of labels in the list.
func (b *Beers) Len() int { return len(b.entries) }

// Status returns "Listed" or "Not listed" for label, and false when the
// label is absent.
func (b *Beers) Status(label string) (string, bool) {
	listed, ok := b.entries[normalize.Label(label)]
	if !ok {
		return "", false
	}
	if listed {
		return Listed, true
	}
	return NotListed, true
}

// Name implements adapter.Source.
func (b *Beers) Name() model.Source { return model.SourceReference }

// Lookup implements adapter.Source. Labels present in the list produce a
// geriatric-risk candidate at full confidence.
func (b *Beers) Lookup(ctx context.Context, concepts []model.Concept) ([]adapter.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "reference: lookup cancelled")
	}
	out := make([]adapter.Result, len(concepts))
	for i, c := range concepts {
		res := adapter.Result{ConceptID: c.ID, Outcome: adapter.NoData, Candidates: model.NewCandidates(b.Name())}
		if status, ok := b.Status(c.PreferredTerm); ok {
			res.Outcome = adapter.Found
			res.Candidates.Set(model.FieldBeersCriteria, model.TextValue(status, model.MaxConfidence))
		}
		out[i] = res
	}
	return out, nil
}
