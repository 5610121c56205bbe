package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/genericrobot77/meds-job/internal/model"
)

const rule = "======================================================================"

// Resource is a research website shown to operators.
type Resource struct {
	Name string
	URL  string
}

// Resources lists the sites used to research each field.
var Resources = []Resource{
	{Name: "DrugBank", URL: "https://go.drugbank.com/"},
	{Name: "WHO ATC Index", URL: "https://atcddd.fhi.no/atc_ddd_index/"},
	{Name: "TGA Database", URL: "https://www.tga.gov.au/prescribing-medicines-pregnancy-database"},
	{Name: "Beers Criteria", URL: "American Geriatrics Society Beers Criteria"},
}

// WriteSummary prints the new products with a researched marker and the
// populated key fields of researched records.
func (g *Generator) WriteSummary(w io.Writer, concepts []model.Concept, doc *model.Document) error {
	fresh := model.NewConcepts(concepts)

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\nMEDICINAL PRODUCTS RESEARCH SUMMARY\n%s\n", rule, rule)
	fmt.Fprintf(&b, "Total products: %d\n", len(concepts))
	fmt.Fprintf(&b, "New products requiring research: %d\n", len(fresh))
	b.WriteString(rule + "\n")

	for i, c := range fresh {
		rec := doc.Get(c.ID)
		marker := "[ ]"
		if rec.Finalized() {
			marker = "[x]"
		}
		uri := c.URI
		if uri == "" {
			uri = "N/A"
		}
		fmt.Fprintf(&b, "\n%d. %s %s\n", i+1, marker, c.PreferredTerm)
		fmt.Fprintf(&b, "   SNOMED Code: %s\n", c.ID)
		fmt.Fprintf(&b, "   SNOMED URI: %s\n", uri)
		if !rec.Finalized() {
			continue
		}
		for _, key := range []model.FieldKey{model.FieldDrugBankID, model.FieldATCCodes, model.FieldPregnancyCategoryAU} {
			spec := g.fields.ByKey(key)
			if spec == nil {
				continue
			}
			if v := rec.Field(key); !v.IsEmpty() {
				fmt.Fprintf(&b, "   %s: %s\n", spec.Label, v.Display(spec.Shape, g.delimiter))
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteResources prints the research websites.
func WriteResources(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\nRESEARCH RESOURCES\n%s\n", rule, rule)
	for _, r := range Resources {
		fmt.Fprintf(&b, "%-15s %s\n", r.Name+":", r.URL)
	}
	b.WriteString(rule + "\n")
	_, err := io.WriteString(w, b.String())
	return err
}
