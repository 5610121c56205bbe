package model

import (
	"encoding/json"
	"sort"
)

// Record is the research record for a single concept code.
type Record struct {
	ConceptID     string
	PreferredTerm string
	URI           string
	Status        string

	Fields              map[FieldKey]FieldValue
	AutoLookupAttempted bool
	ResearchedDate      string

	// Extra and ResearchExtra hold document keys this version does not
	// recognize, at the record level and inside the research object.
	// They are written back unchanged.
	Extra         map[string]json.RawMessage
	ResearchExtra map[string]json.RawMessage
}

// NewRecord builds a record for c with every field at its default.
func NewRecord(c Concept, fields *FieldRegistry) *Record {
	r := &Record{
		ConceptID:     c.ID,
		PreferredTerm: c.PreferredTerm,
		URI:           c.URI,
		Status:        c.Status,
		Fields:        make(map[FieldKey]FieldValue, fields.Len()),
	}
	for _, f := range fields.Fields {
		r.Fields[f.Key] = f.Default()
	}
	return r
}

// Field returns the stored value for key, or the zero value.
func (r *Record) Field(key FieldKey) FieldValue {
	if r == nil {
		return FieldValue{}
	}
	return r.Fields[key]
}

// Finalized reports whether the researched date has been set.
func (r *Record) Finalized() bool {
	return r != nil && r.ResearchedDate != ""
}

// Concept returns the identity of the record as a Concept.
func (r *Record) Concept() Concept {
	return Concept{ID: r.ConceptID, PreferredTerm: r.PreferredTerm, Status: r.Status, URI: r.URI}
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	out := *r
	out.Fields = make(map[FieldKey]FieldValue, len(r.Fields))
	for k, v := range r.Fields {
		out.Fields[k] = v.Clone()
	}
	out.Extra = cloneRaw(r.Extra)
	out.ResearchExtra = cloneRaw(r.ResearchExtra)
	return &out
}

func cloneRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Document is the keyed research store held in memory.
type Document struct {
	Records map[string]*Record
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{Records: make(map[string]*Record)}
}

// Get returns the record for code, or nil.
func (d *Document) Get(code string) *Record {
	if d == nil {
		return nil
	}
	return d.Records[code]
}

// CreateIfAbsent inserts a default record for c unless one exists. It returns
// the stored record and whether it was created by this call.
func (d *Document) CreateIfAbsent(c Concept, fields *FieldRegistry) (*Record, bool) {
	if rec, ok := d.Records[c.ID]; ok {
		return rec, false
	}
	rec := NewRecord(c, fields)
	d.Records[c.ID] = rec
	return rec, true
}

// Codes returns the record codes in sorted order.
func (d *Document) Codes() []string {
	codes := make([]string, 0, len(d.Records))
	for code := range d.Records {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Len returns the number of records.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}
