package model

// Source identifies the adapter that produced a candidate set.
type Source string

// Known sources.
const (
	SourceKnowledgeGraph Source = "knowledge_graph"
	SourceAgent          Source = "agent"
	SourceImport         Source = "import"
	SourceManual         Source = "manual"
	SourceReference      Source = "reference"
)

// Candidates is one adapter's normalized output for one concept.
type Candidates struct {
	Source         Source
	Fields         map[FieldKey]FieldValue
	ResearchedDate string
}

// NewCandidates returns an empty candidate set for src.
func NewCandidates(src Source) Candidates {
	return Candidates{Source: src, Fields: make(map[FieldKey]FieldValue)}
}

// IsEmpty reports whether the set carries no non-empty field and no date.
func (c Candidates) IsEmpty() bool {
	if c.ResearchedDate != "" {
		return false
	}
	for _, v := range c.Fields {
		if !v.IsEmpty() {
			return false
		}
	}
	return true
}

// Set stores v under key, replacing any previous candidate.
func (c *Candidates) Set(key FieldKey, v FieldValue) {
	if c.Fields == nil {
		c.Fields = make(map[FieldKey]FieldValue)
	}
	c.Fields[key] = v
}
