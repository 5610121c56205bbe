package model

// FieldDecision records how the merger treated one candidate field.
type FieldDecision struct {
	FieldKey            FieldKey `json:"field_key"`
	Source              Source   `json:"source"`
	Applied             bool     `json:"applied"`
	CandidateConfidence int      `json:"candidate_confidence"`
	PreviousConfidence  int      `json:"previous_confidence"`
	ValueChanged        bool     `json:"value_changed"`
}

// MergeResult summarizes one merge of a candidate set into a record.
type MergeResult struct {
	ConceptID string          `json:"concept_id"`
	Source    Source          `json:"source"`
	Decisions []FieldDecision `json:"decisions"`
	// Finalized is true when this merge set the researched date.
	Finalized bool `json:"finalized"`
	// Changed is true when any stored value, confidence or flag changed.
	Changed bool `json:"changed"`
}

// Applied returns the keys of fields the merge accepted.
func (r MergeResult) Applied() []FieldKey {
	var keys []FieldKey
	for _, d := range r.Decisions {
		if d.Applied {
			keys = append(keys, d.FieldKey)
		}
	}
	return keys
}

// Rejected returns the decisions the merge discarded.
func (r MergeResult) Rejected() []FieldDecision {
	var out []FieldDecision
	for _, d := range r.Decisions {
		if !d.Applied {
			out = append(out, d)
		}
	}
	return out
}
