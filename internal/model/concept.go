package model

import "strings"

// StatusNew is the lifecycle status of concepts first seen in this release.
const StatusNew = "new"

// Concept is an external coded entity observed in the input listing.
type Concept struct {
	ID            string `json:"concept_ID"`
	PreferredTerm string `json:"preferred_term"`
	Status        string `json:"status"`
	URI           string `json:"SNOMED_uri"`
}

// IsNew reports whether the concept carries the "new" lifecycle status.
func (c Concept) IsNew() bool {
	return strings.EqualFold(strings.TrimSpace(c.Status), StatusNew)
}

// NewConcepts filters concepts to those with the "new" status, keeping order.
func NewConcepts(concepts []Concept) []Concept {
	var out []Concept
	for _, c := range concepts {
		if c.IsNew() {
			out = append(out, c)
		}
	}
	return out
}
