package model

import (
	"strings"
)

// FieldKey names a researchable attribute inside a record's research object.
type FieldKey string

// Recognized research fields, in document order.
const (
	FieldDrugBankID           FieldKey = "drugbank_id"
	FieldWikidataURI          FieldKey = "wikidata_uri"
	FieldATCCodes             FieldKey = "atc_codes"
	FieldATCClassification    FieldKey = "atc_classification"
	FieldRxNormCodes          FieldKey = "rxnorm_codes"
	FieldPregnancyCategoryAU  FieldKey = "pregnancy_category_au"
	FieldPregnancyCategoryFDA FieldKey = "pregnancy_category_fda"
	FieldBeersCriteria        FieldKey = "beers_criteria"
	FieldClinicalNotes        FieldKey = "clinical_notes"
	FieldSingleSubstance      FieldKey = "is_single_substance"
)

// Document keys that sit next to the fields in the research object.
const (
	KeyAutoLookupAttempted = "auto_lookup_attempted"
	KeyResearchedDate      = "researched_date"
)

// ConfidenceSuffix is appended to a field key to name its confidence attribute.
const ConfidenceSuffix = "_confidence"

// Shape describes how a field's value is stored.
type Shape int

const (
	// ShapeText is a single scalar string.
	ShapeText Shape = iota
	// ShapeList is an ordered, duplicate-free list of strings.
	ShapeList
	// ShapeFlag is a tri-state boolean (unset, true, false).
	ShapeFlag
)

func (s Shape) String() string {
	switch s {
	case ShapeText:
		return "text"
	case ShapeList:
		return "list"
	case ShapeFlag:
		return "flag"
	default:
		return "unknown"
	}
}

// FieldSpec declares a researchable attribute: its shape, whether it counts
// toward completeness, and the provenance label shown in reports.
type FieldSpec struct {
	Key        FieldKey `json:"key"`
	Shape      Shape    `json:"shape"`
	Label      string   `json:"label"`
	Primary    bool     `json:"primary"`
	Provenance string   `json:"provenance,omitempty"`
}

// ConfidenceKey returns the document key holding this field's confidence.
func (f FieldSpec) ConfidenceKey() string {
	return string(f.Key) + ConfidenceSuffix
}

// Default returns the field's zero-confidence default value.
func (f FieldSpec) Default() FieldValue {
	if f.Shape == ShapeList {
		return FieldValue{List: []string{}}
	}
	return FieldValue{}
}

// FieldRegistry is an ordered collection of field specs with indexed lookups.
type FieldRegistry struct {
	Fields  []FieldSpec
	byKey   map[FieldKey]*FieldSpec
	primary []*FieldSpec
}

// NewFieldRegistry indexes the given specs. Order is preserved and is the
// order used by every report column and prompt.
func NewFieldRegistry(fields []FieldSpec) *FieldRegistry {
	r := &FieldRegistry{
		Fields: fields,
		byKey:  make(map[FieldKey]*FieldSpec, len(fields)),
	}
	for i := range r.Fields {
		f := &r.Fields[i]
		r.byKey[f.Key] = f
		if f.Primary {
			r.primary = append(r.primary, f)
		}
	}
	return r
}

// DefaultFields returns the registry of recognized research fields.
func DefaultFields() *FieldRegistry {
	return NewFieldRegistry([]FieldSpec{
		{Key: FieldDrugBankID, Shape: ShapeText, Label: "DrugBank ID", Primary: true, Provenance: "DrugBank"},
		{Key: FieldWikidataURI, Shape: ShapeText, Label: "Wikidata URI", Provenance: "Wikidata"},
		{Key: FieldATCCodes, Shape: ShapeList, Label: "ATC Code(s)", Primary: true, Provenance: "WHO ATC/DDD Index"},
		{Key: FieldATCClassification, Shape: ShapeText, Label: "ATC Classification", Provenance: "WHO ATC/DDD Index"},
		{Key: FieldRxNormCodes, Shape: ShapeList, Label: "RxNorm Code(s)", Provenance: "RxNorm"},
		{Key: FieldPregnancyCategoryAU, Shape: ShapeText, Label: "Pregnancy Category (AU)", Primary: true, Provenance: "TGA Pregnancy Database"},
		{Key: FieldPregnancyCategoryFDA, Shape: ShapeText, Label: "Pregnancy Category (FDA)", Provenance: "FDA Labeling"},
		{Key: FieldBeersCriteria, Shape: ShapeText, Label: "Beers Criteria", Primary: true, Provenance: "AGS Beers Criteria"},
		{Key: FieldClinicalNotes, Shape: ShapeText, Label: "Clinical Notes", Primary: true},
		{Key: FieldSingleSubstance, Shape: ShapeFlag, Label: "Single Substance"},
	})
}

// ByKey returns the spec for key, or nil if the key is not recognized.
func (r *FieldRegistry) ByKey(key FieldKey) *FieldSpec {
	return r.byKey[key]
}

// Lookup resolves a raw document key to a field spec. Keys are matched
// case-insensitively after trimming.
func (r *FieldRegistry) Lookup(raw string) *FieldSpec {
	key := FieldKey(strings.ToLower(strings.TrimSpace(raw)))
	return r.byKey[key]
}

// Primary returns the specs that count toward completeness.
func (r *FieldRegistry) Primary() []*FieldSpec {
	return r.primary
}

// Len returns the number of registered fields.
func (r *FieldRegistry) Len() int {
	return len(r.Fields)
}
