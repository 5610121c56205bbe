package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genericrobot77/meds-job/internal/model"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "research_data.json"), model.DefaultFields())
}

func writeDoc(t *testing.T, s *FileStore, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(s.Path(), []byte(body), 0o644))
}

func sampleDocument() *model.Document {
	fields := model.DefaultFields()
	doc := model.NewDocument()

	full, _ := doc.CreateIfAbsent(model.Concept{ID: "C1", PreferredTerm: "Drug Alpha", Status: "new", URI: "http://snomed.info/id/C1"}, fields)
	full.Fields[model.FieldDrugBankID] = model.TextValue("ID123", 100)
	full.Fields[model.FieldATCCodes] = model.ListValue([]string{"N02BE01", "A01"}, 90)
	full.Fields[model.FieldSingleSubstance] = model.FlagValue(true, 100)
	full.Fields[model.FieldClinicalNotes] = model.TextValue("Analgésique", 40)
	full.AutoLookupAttempted = true
	full.ResearchedDate = "2025-03-01"

	doc.CreateIfAbsent(model.Concept{ID: "C2", PreferredTerm: "Vitamin D + Calcium", Status: "new"}, fields)
	return doc
}

func TestFileStore_LoadMissing(t *testing.T) {
	t.Parallel()

	s := newTestFileStore(t)
	doc, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, doc.Len())
}

func TestFileStore_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestFileStore(t)
	doc := sampleDocument()
	require.NoError(t, s.Save(doc))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	// A second save of the loaded document is byte-identical.
	first, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.NoError(t, s.Save(got))
	second, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestFileStore_SaveFormat(t *testing.T) {
	t.Parallel()

	s := newTestFileStore(t)
	require.NoError(t, s.Save(sampleDocument()))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasSuffix(text, "}\n"))
	assert.True(t, strings.HasPrefix(text, "{\n  \"C1\": {"))
	assert.Contains(t, text, "Analgésique")
	assert.Less(t, strings.Index(text, `"atc_codes"`), strings.Index(text, `"drugbank_id"`))
	assert.Contains(t, text, `"is_single_substance": null`)
	assert.Contains(t, text, `"rxnorm_codes": []`)

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestFileStore_LegacyBackfill(t *testing.T) {
	t.Parallel()

	s := newTestFileStore(t)
	writeDoc(t, s, `{
  "933623411000036106": {
    "preferred_term": "Anacaulase-bcdb",
    "concept_ID": "933623411000036106",
    "SNOMED_uri": "http://snomed.info/id/933623411000036106",
    "status": "new",
    "research": {
      "drugbank_id": "DB17449",
      "drugbank_url": "https://go.drugbank.com/drugs/DB17449",
      "atc_codes": "D03BA03",
      "atc_classification": "",
      "pregnancy_category_au": "B2",
      "pregnancy_category_au_confidence": 140,
      "beers_criteria": "Not listed",
      "clinical_notes": "",
      "clinical_notes_confidence": 80,
      "is_single_substance": null,
      "researched_date": ""
    },
    "reviewer": {"name": "pharmacist"}
  }
}`)

	doc, err := s.Load()
	require.NoError(t, err)
	rec := doc.Get("933623411000036106")
	require.NotNil(t, rec)

	assert.Equal(t, model.TextValue("DB17449", 100), rec.Field(model.FieldDrugBankID))
	assert.Equal(t, []string{"D03BA03"}, rec.Field(model.FieldATCCodes).List)
	assert.Equal(t, 100, rec.Field(model.FieldATCCodes).Confidence)
	assert.Equal(t, 100, rec.Field(model.FieldPregnancyCategoryAU).Confidence, "stored confidence is clamped")
	assert.Equal(t, 0, rec.Field(model.FieldClinicalNotes).Confidence, "empty value forces confidence 0")
	assert.Equal(t, 0, rec.Field(model.FieldATCClassification).Confidence)
	assert.Nil(t, rec.Field(model.FieldSingleSubstance).Flag)
	assert.Equal(t, []string{}, rec.Field(model.FieldRxNormCodes).List)
	assert.False(t, rec.AutoLookupAttempted)
	assert.Contains(t, rec.ResearchExtra, "drugbank_url")
	assert.Contains(t, rec.Extra, "reviewer")

	// Unknown keys survive a save.
	require.NoError(t, s.Save(doc))
	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	var raw map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `{"name": "pharmacist"}`, string(raw["933623411000036106"]["reviewer"]))

	var research map[string]any
	require.NoError(t, json.Unmarshal(raw["933623411000036106"]["research"], &research))
	assert.Equal(t, "https://go.drugbank.com/drugs/DB17449", research["drugbank_url"])
	assert.Equal(t, float64(100), research["drugbank_id_confidence"])
	assert.Equal(t, false, research["auto_lookup_attempted"])
}

func TestFileStore_Corrupt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"C1": `},
		{"record not object", `{"C1": "oops"}`},
		{"research not object", `{"C1": {"research": [1, 2]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestFileStore(t)
			writeDoc(t, s, tt.body)
			_, err := s.Load()
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrCorrupt))
		})
	}
}

func TestFileStore_EmptyFile(t *testing.T) {
	t.Parallel()

	s := newTestFileStore(t)
	writeDoc(t, s, "  \n")
	doc, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, doc.Len())
}

func TestDecode_ConceptIDFallsBackToKey(t *testing.T) {
	t.Parallel()

	doc, err := Decode([]byte(`{"C9": {"preferred_term": "x", "research": null}}`), model.DefaultFields())
	require.NoError(t, err)
	rec := doc.Get("C9")
	require.NotNil(t, rec)
	assert.Equal(t, "C9", rec.ConceptID)
	assert.Len(t, rec.Fields, 10)
}
