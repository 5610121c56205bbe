// Package reconcile folds normalized candidates into research records under
// a single confidence-precedence rule.
package reconcile

import (
	"go.uber.org/zap"

	"github.com/genericrobot77/meds-job/internal/model"
	"github.com/genericrobot77/meds-job/internal/normalize"
)

// Merger applies candidate sets to records.
type Merger struct {
	fields *model.FieldRegistry
}

// NewMerger creates a Merger for the given fields.
func NewMerger(fields *model.FieldRegistry) *Merger {
	return &Merger{fields: fields}
}

// Accepts reports whether cand should replace current: the candidate must
// be non-empty, and either the current value is empty or the candidate is
// strictly more confident. Equal confidence never overwrites.
func Accepts(current, cand model.FieldValue) bool {
	if cand.IsEmpty() {
		return false
	}
	return current.IsEmpty() || cand.Confidence > current.Confidence
}

// Merge folds cands into rec in place, visiting fields in registry order.
//
// An accepted list replaces the stored list wholesale. Accepting a
// database identifier marks the record as a single substance at the
// identifier's confidence. Knowledge-graph candidates always set the
// auto-lookup flag. A researched date is written only once.
func (m *Merger) Merge(rec *model.Record, cands model.Candidates) model.MergeResult {
	res := model.MergeResult{ConceptID: rec.ConceptID, Source: cands.Source}
	if rec.Fields == nil {
		rec.Fields = make(map[model.FieldKey]model.FieldValue, m.fields.Len())
	}

	for _, spec := range m.fields.Fields {
		cand, ok := cands.Fields[spec.Key]
		if !ok {
			continue
		}
		cand = canonical(spec, cand)
		current := rec.Fields[spec.Key]
		d := model.FieldDecision{
			FieldKey:            spec.Key,
			Source:              cands.Source,
			CandidateConfidence: cand.Confidence,
			PreviousConfidence:  current.Confidence,
		}
		if Accepts(current, cand) {
			next := cand
			d.Applied = true
			d.ValueChanged = !current.Equal(next)
			rec.Fields[spec.Key] = next
			res.Changed = res.Changed || d.ValueChanged

			if spec.Key == model.FieldDrugBankID {
				res.Decisions = append(res.Decisions, d)
				res.Changed = m.markSingleSubstance(rec, next.Confidence, cands.Source, &res) || res.Changed
				continue
			}
		}
		res.Decisions = append(res.Decisions, d)
	}

	if cands.ResearchedDate != "" && rec.ResearchedDate == "" {
		rec.ResearchedDate = cands.ResearchedDate
		res.Finalized = true
		res.Changed = true
	}

	if cands.Source == model.SourceKnowledgeGraph && !rec.AutoLookupAttempted {
		rec.AutoLookupAttempted = true
		res.Changed = true
	}

	if len(res.Decisions) > 0 || res.Changed {
		zap.L().Debug("reconcile: merged candidates",
			zap.String("concept_id", rec.ConceptID),
			zap.String("source", string(cands.Source)),
			zap.Any("applied", res.Applied()),
			zap.Any("rejected", res.Rejected()),
			zap.Bool("finalized", res.Finalized),
		)
	}
	return res
}

// canonical enforces the stored shape of a candidate built outside the
// normalizer: lists deduplicated, confidence clamped, empty at 0.
func canonical(spec model.FieldSpec, v model.FieldValue) model.FieldValue {
	out := v.Clone()
	if spec.Shape == model.ShapeList {
		out.List = normalize.List(out.List)
	}
	if out.IsEmpty() {
		return spec.Default()
	}
	out.Confidence = model.ClampConfidence(out.Confidence)
	return out
}

// markSingleSubstance sets the derived single-substance flag. A flag that is
// already true keeps the higher of its own and the identifier's confidence.
// It reports whether the stored flag changed.
func (m *Merger) markSingleSubstance(rec *model.Record, confidence int, src model.Source, res *model.MergeResult) bool {
	if m.fields.ByKey(model.FieldSingleSubstance) == nil {
		return false
	}
	current := rec.Fields[model.FieldSingleSubstance]
	if current.Flag != nil && *current.Flag && current.Confidence > confidence {
		confidence = current.Confidence
	}
	next := model.FlagValue(true, confidence)
	changed := !current.Equal(next)
	rec.Fields[model.FieldSingleSubstance] = next
	res.Decisions = append(res.Decisions, model.FieldDecision{
		FieldKey:            model.FieldSingleSubstance,
		Source:              src,
		Applied:             true,
		CandidateConfidence: confidence,
		PreviousConfidence:  current.Confidence,
		ValueChanged:        changed,
	})
	return changed
}

// MergeAll folds each candidate set into rec in order and returns the
// per-set results.
func (m *Merger) MergeAll(rec *model.Record, sets ...model.Candidates) []model.MergeResult {
	out := make([]model.MergeResult, 0, len(sets))
	for _, c := range sets {
		out = append(out, m.Merge(rec, c))
	}
	return out
}
