// Package report renders the research document into the aggregate and
// tabular reports.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/genericrobot77/meds-job/internal/completeness"
	"github.com/genericrobot77/meds-job/internal/model"
)

// DefaultListDelimiter joins list values in tabular output.
const DefaultListDelimiter = "; "

// reportNamespace scopes name-based report identifiers.
var reportNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/genericrobot77/meds-job/report"))

// Metadata describes one generated aggregate report.
type Metadata struct {
	ReportID      string `json:"report_id" yaml:"report_id"`
	GeneratedDate string `json:"generated_date" yaml:"generated_date"`
	SourceListing string `json:"source_listing" yaml:"source_listing"`
	RecordCount   int    `json:"record_count" yaml:"record_count"`
}

// NewMetadata builds report metadata. The report ID is derived from the
// listing reference and the concept codes, so identical inputs share it.
func NewMetadata(listing string, concepts []model.Concept, now time.Time) Metadata {
	var b strings.Builder
	b.WriteString(listing)
	for _, c := range concepts {
		b.WriteByte('\n')
		b.WriteString(c.ID)
	}
	return Metadata{
		ReportID:      uuid.NewSHA1(reportNamespace, []byte(b.String())).String(),
		GeneratedDate: now.UTC().Format(time.RFC3339),
		SourceListing: listing,
	}
}

// FieldEntry is a field value with its confidence.
type FieldEntry struct {
	Value      any `json:"value" yaml:"value"`
	Confidence int `json:"confidence" yaml:"confidence"`
}

// Entry is the aggregate report entry for one concept.
type Entry struct {
	ConceptID           string                `json:"concept_ID" yaml:"concept_ID"`
	PreferredTerm       string                `json:"preferred_term" yaml:"preferred_term"`
	URI                 string                `json:"SNOMED_uri" yaml:"SNOMED_uri"`
	Status              string                `json:"status" yaml:"status"`
	ProductType         ProductType           `json:"product_type" yaml:"product_type"`
	Fields              map[string]FieldEntry `json:"fields" yaml:"fields"`
	AutoLookupAttempted bool                  `json:"auto_lookup_attempted" yaml:"auto_lookup_attempted"`
	ResearchedDate      string                `json:"researched_date" yaml:"researched_date"`
	Completeness        completeness.Bucket   `json:"completeness" yaml:"completeness"`
	CompletenessPercent int                   `json:"completeness_percent" yaml:"completeness_percent"`
	ProvenanceSources   []string              `json:"provenance_sources" yaml:"provenance_sources"`
	MatchQuality        int                   `json:"match_quality" yaml:"match_quality"`
	ExactMatchFields    []string              `json:"exact_match_fields" yaml:"exact_match_fields"`
}

// Summary is the closing block of the aggregate report.
type Summary struct {
	TotalRecords      int            `json:"total_records" yaml:"total_records"`
	HighConfidence    int            `json:"high_confidence" yaml:"high_confidence"`
	LimitedConfidence int            `json:"limited_confidence" yaml:"limited_confidence"`
	Researched        int            `json:"researched" yaml:"researched"`
	Buckets           map[string]int `json:"completeness_buckets" yaml:"completeness_buckets"`
	ProductTypes      map[string]int `json:"product_types" yaml:"product_types"`
	Findings          []string       `json:"findings" yaml:"findings"`
}

// Aggregate is the structured report over new concepts.
type Aggregate struct {
	Metadata Metadata `json:"metadata" yaml:"metadata"`
	Research []Entry  `json:"research" yaml:"research"`
	Summary  Summary  `json:"summary" yaml:"summary"`
}

// Generator renders reports for a field registry.
type Generator struct {
	fields    *model.FieldRegistry
	delimiter string
}

// NewGenerator creates a Generator. An empty delimiter selects
// DefaultListDelimiter.
func NewGenerator(fields *model.FieldRegistry, delimiter string) *Generator {
	if delimiter == "" {
		delimiter = DefaultListDelimiter
	}
	return &Generator{fields: fields, delimiter: delimiter}
}

// record returns the stored record for c, or a default record when none
// exists.
func (g *Generator) record(c model.Concept, doc *model.Document) *model.Record {
	if rec := doc.Get(c.ID); rec != nil {
		return rec
	}
	return model.NewRecord(c, g.fields)
}

// BuildAggregate renders the aggregate report for the new concepts in
// listing order. meta.RecordCount is set to the number of entries.
func (g *Generator) BuildAggregate(concepts []model.Concept, doc *model.Document, meta Metadata) *Aggregate {
	agg := &Aggregate{Research: []Entry{}}
	for _, c := range model.NewConcepts(concepts) {
		agg.Research = append(agg.Research, g.entry(c, g.record(c, doc)))
	}
	meta.RecordCount = len(agg.Research)
	agg.Metadata = meta
	agg.Summary = g.summarize(agg.Research)
	return agg
}

func (g *Generator) entry(c model.Concept, rec *model.Record) Entry {
	score := completeness.Evaluate(rec, g.fields)
	e := Entry{
		ConceptID:           c.ID,
		PreferredTerm:       c.PreferredTerm,
		URI:                 c.URI,
		Status:              c.Status,
		ProductType:         ClassifyProductType(c.PreferredTerm),
		Fields:              make(map[string]FieldEntry, g.fields.Len()),
		AutoLookupAttempted: rec.AutoLookupAttempted,
		ResearchedDate:      rec.ResearchedDate,
		Completeness:        score.Bucket,
		CompletenessPercent: score.Percent,
		ProvenanceSources:   []string{},
		ExactMatchFields:    []string{},
	}

	seen := make(map[string]bool)
	for _, spec := range g.fields.Fields {
		v := rec.Field(spec.Key)
		e.Fields[string(spec.Key)] = FieldEntry{Value: v.Interface(spec.Shape), Confidence: v.Confidence}
		if v.IsEmpty() {
			continue
		}
		if v.Confidence == model.MaxConfidence {
			e.MatchQuality++
			e.ExactMatchFields = append(e.ExactMatchFields, string(spec.Key))
		}
		if spec.Provenance != "" && !seen[spec.Provenance] {
			seen[spec.Provenance] = true
			e.ProvenanceSources = append(e.ProvenanceSources, spec.Provenance)
		}
	}
	return e
}

func (g *Generator) summarize(entries []Entry) Summary {
	s := Summary{
		TotalRecords: len(entries),
		Buckets: map[string]int{
			string(completeness.High):    0,
			string(completeness.Medium):  0,
			string(completeness.Low):     0,
			string(completeness.VeryLow): 0,
		},
		ProductTypes: map[string]int{},
	}

	exact := 0
	missingATC := 0
	for _, e := range entries {
		s.Buckets[string(e.Completeness)]++
		s.ProductTypes[string(e.ProductType)]++
		if e.Completeness.Limited() {
			s.LimitedConfidence++
		} else {
			s.HighConfidence++
		}
		if e.ResearchedDate != "" {
			s.Researched++
		}
		exact += e.MatchQuality
		if f, ok := e.Fields[string(model.FieldATCCodes)]; ok {
			if list, _ := f.Value.([]string); len(list) == 0 {
				missingATC++
			}
		}
	}

	s.Findings = []string{
		fmt.Sprintf("%d of %d new products have been fully researched", s.Researched, s.TotalRecords),
		fmt.Sprintf("%d records have high-confidence coverage (high or medium completeness)", s.HighConfidence),
		fmt.Sprintf("%d records have limited coverage and need further research", s.LimitedConfidence),
		fmt.Sprintf("%d field values are exact matches (confidence 100) and safe for direct import", exact),
	}
	if missingATC > 0 {
		s.Findings = append(s.Findings, fmt.Sprintf("%d products have no ATC code yet", missingATC))
	}
	if len(s.ProductTypes) > 0 {
		s.Findings = append(s.Findings, "Product types: "+formatCounts(s.ProductTypes))
	}
	return s
}

// formatCounts renders counts as "a=1, b=2" in key order.
func formatCounts(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return strings.Join(parts, ", ")
}
