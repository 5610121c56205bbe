package report

import (
	"strconv"

	"github.com/genericrobot77/meds-job/internal/model"
)

// identityColumns open every tabular row.
var identityColumns = []string{"preferred_term", "concept_ID", "SNOMED_uri", "status"}

// Header returns the tabular column names: identity columns, then each
// field followed by its confidence, then the lookup flag and date.
func (g *Generator) Header() []string {
	cols := make([]string, 0, len(identityColumns)+2*g.fields.Len()+2)
	cols = append(cols, identityColumns...)
	for _, spec := range g.fields.Fields {
		cols = append(cols, string(spec.Key), spec.ConfidenceKey())
	}
	return append(cols, model.KeyAutoLookupAttempted, model.KeyResearchedDate)
}

// BuildTabular renders one row per listing concept, regardless of status,
// preceded by the header row.
func (g *Generator) BuildTabular(concepts []model.Concept, doc *model.Document) [][]string {
	rows := make([][]string, 0, len(concepts)+1)
	rows = append(rows, g.Header())
	for _, c := range concepts {
		rows = append(rows, g.row(c, g.record(c, doc)))
	}
	return rows
}

func (g *Generator) row(c model.Concept, rec *model.Record) []string {
	row := make([]string, 0, len(identityColumns)+2*g.fields.Len()+2)
	row = append(row, c.PreferredTerm, c.ID, c.URI, c.Status)
	for _, spec := range g.fields.Fields {
		v := rec.Field(spec.Key)
		row = append(row, v.Display(spec.Shape, g.delimiter), strconv.Itoa(v.Confidence))
	}
	return append(row, strconv.FormatBool(rec.AutoLookupAttempted), rec.ResearchedDate)
}
