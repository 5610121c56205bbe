// Package completeness buckets research records by primary-field coverage.
package completeness

import "github.com/genericrobot77/meds-job/internal/model"

// Bucket is a discrete completeness label.
type Bucket string

const (
	High    Bucket = "high"
	Medium  Bucket = "medium"
	Low     Bucket = "low"
	VeryLow Bucket = "very_low"
)

// Bucket thresholds, as a percentage of populated primary fields.
const (
	mediumPercent = 60
	lowPercent    = 20
)

// Score holds the raw coverage behind a bucket.
type Score struct {
	Populated int    `json:"populated"`
	Total     int    `json:"total"`
	Percent   int    `json:"percent"`
	Bucket    Bucket `json:"bucket"`
}

// Limited reports whether the bucket counts as limited confidence in
// report summaries.
func (b Bucket) Limited() bool {
	return b == Low || b == VeryLow
}

// Classify returns the completeness bucket of rec. A nil record is very_low.
func Classify(rec *model.Record, fields *model.FieldRegistry) Bucket {
	return Evaluate(rec, fields).Bucket
}

// Evaluate counts populated primary fields in rec and buckets the result.
// Comparisons use integer arithmetic so boundaries are exact.
func Evaluate(rec *model.Record, fields *model.FieldRegistry) Score {
	primary := fields.Primary()
	s := Score{Total: len(primary)}
	for _, spec := range primary {
		if !rec.Field(spec.Key).IsEmpty() {
			s.Populated++
		}
	}
	if s.Total == 0 {
		s.Bucket = VeryLow
		return s
	}

	s.Percent = s.Populated * 100 / s.Total
	switch scaled := s.Populated * 100; {
	case s.Populated == s.Total:
		s.Bucket = High
	case scaled >= mediumPercent*s.Total:
		s.Bucket = Medium
	case scaled >= lowPercent*s.Total:
		s.Bucket = Low
	default:
		s.Bucket = VeryLow
	}
	return s
}
