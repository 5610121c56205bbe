package agent

import (
	"fmt"
	"strings"

	"github.com/genericrobot77/meds-job/internal/model"
)

// SystemPrompt frames every research request.
const SystemPrompt = `You are a clinical terminology researcher. You look up identifiers and safety
classifications for Australian medicinal products using official sources only.
You answer with a single JSON object and nothing else.`

// Research sources offered to the agent, in prompt order.
var Sources = []struct {
	Name string
	URL  string
}{
	{"DrugBank", "https://go.drugbank.com/"},
	{"WHO ATC/DDD Index", "https://atcddd.fhi.no/atc_ddd_index/"},
	{"TGA Prescribing Medicines in Pregnancy Database", "https://www.tga.gov.au/prescribing-medicines-pregnancy-database"},
	{"AGS Beers Criteria", "https://www.americangeriatrics.org/"},
}

// SearchDomains restricts web-search agents to the research sources.
var SearchDomains = []string{"go.drugbank.com", "atcddd.fhi.no", "tga.gov.au", "americangeriatrics.org"}

// PromptOptions tune the research prompt.
type PromptOptions struct {
	// Today is the date the agent should report as researched_date.
	Today string
	// PrimaryJurisdiction and SecondaryJurisdiction label the two pregnancy
	// category fields.
	PrimaryJurisdiction   string
	SecondaryJurisdiction string
}

// BuildPrompt renders the research request for concepts. The reply is
// expected as a JSON object keyed by concept code whose fields are
// {"value", "confidence"} pairs.
func BuildPrompt(concepts []model.Concept, fields *model.FieldRegistry, opts PromptOptions) string {
	primary := orDefault(opts.PrimaryJurisdiction, "AU")
	secondary := orDefault(opts.SecondaryJurisdiction, "FDA")

	var b strings.Builder
	b.WriteString("# Medicinal Product Research Task\n\n")
	b.WriteString("Research the following new Australian medicinal products.\n\n")

	b.WriteString("## Products to Research\n")
	for _, c := range concepts {
		fmt.Fprintf(&b, "  - %s (SNOMED ID: %s, URI: %s)\n", c.PreferredTerm, c.ID, orDefault(c.URI, "N/A"))
	}

	b.WriteString("\n## Sources\n")
	for i, s := range Sources {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, s.Name, s.URL)
	}

	b.WriteString("\n## Instructions\n")
	b.WriteString("- DrugBank ID (DB#####): only for single-substance medications, skip combinations.\n")
	b.WriteString("- ATC code(s) with their classification. Very new drugs may not have codes yet; leave blank.\n")
	fmt.Fprintf(&b, "- Pregnancy category (%s): A, B1, B2, B3, C, D or X. Pregnancy category (%s) is secondary.\n", primary, secondary)
	b.WriteString("- Beers Criteria: \"Listed\" or \"Not listed\". Most new drugs are not listed.\n")
	b.WriteString("- Clinical notes: drug class, indication, brand name.\n")
	b.WriteString("- If information is not found, leave the value blank with confidence 0. Never guess.\n")
	b.WriteString("- Confidence is an integer 0-100. Use 100 only for an exact match on an official source.\n")

	b.WriteString("\n## Output Format\n")
	b.WriteString("Reply with one JSON object keyed by SNOMED ID. Each field is {\"value\": ..., \"confidence\": ...}.\n")
	b.WriteString("Fields:\n")
	for _, f := range fields.Fields {
		if f.Key == model.FieldWikidataURI || f.Key == model.FieldRxNormCodes {
			continue
		}
		fmt.Fprintf(&b, "  - %s (%s): %s\n", f.Key, f.Shape, f.Label)
	}
	if opts.Today != "" {
		fmt.Fprintf(&b, "Also set \"%s\": \"%s\" for every product you researched.\n", model.KeyResearchedDate, opts.Today)
	}

	example := "000000"
	if len(concepts) > 0 {
		example = concepts[0].ID
	}
	b.WriteString("\n```json\n")
	fmt.Fprintf(&b, `{
  "%s": {
    "drugbank_id": {"value": "DB17449", "confidence": 100},
    "atc_codes": {"value": ["D03BA03"], "confidence": 100},
    "atc_classification": {"value": "Proteolytic enzymes", "confidence": 90},
    "pregnancy_category_au": {"value": "", "confidence": 0},
    "beers_criteria": {"value": "Not listed", "confidence": 80},
    "is_single_substance": {"value": true, "confidence": 100},
    "clinical_notes": {"value": "Brief description", "confidence": 70}
  }
}`, example)
	b.WriteString("\n```\n")
	return b.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
