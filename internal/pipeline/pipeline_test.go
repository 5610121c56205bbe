package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/genericrobot77/meds-job/internal/adapter"
	"github.com/genericrobot77/meds-job/internal/listing"
	"github.com/genericrobot77/meds-job/internal/model"
)

func newKG() *mockSource { return &mockSource{name: model.SourceKnowledgeGraph} }

func TestEnrich_KnowledgeGraph(t *testing.T) {
	f := newFixture(t,
		"ID123,Drug Alpha 10 mg tablet,new",
		"ID456,Drug Beta cream,new",
		"ID789,Drug Gamma,existing",
	)

	kg := newKG()
	kg.On("Lookup", mock.Anything, forConcept("ID123")).Return(found(model.SourceKnowledgeGraph, "ID123", map[model.FieldKey]model.FieldValue{
		model.FieldDrugBankID: model.TextValue("DB00001", 100),
		model.FieldATCCodes:   model.ListValue([]string{"N02BE01"}, 100),
	}), nil).Once()
	kg.On("Lookup", mock.Anything, forConcept("ID456")).Return(noData(model.SourceKnowledgeGraph, "ID456"), nil).Once()

	summary, err := f.runner(Sources{KnowledgeGraph: kg}).Enrich(context.Background())
	require.NoError(t, err)
	kg.AssertExpectations(t)

	assert.Equal(t, 3, summary.Concepts)
	assert.Equal(t, 2, summary.NewConcepts)
	assert.Equal(t, 2, summary.Created)
	tally := summary.Sources[model.SourceKnowledgeGraph]
	assert.Equal(t, 1, tally.Found)
	assert.Equal(t, 1, tally.NoData)
	assert.Equal(t, 3, tally.Applied) // drugbank, atc and the single-substance flag

	doc := f.reload(t)
	assert.Equal(t, 2, doc.Len())
	assert.Nil(t, doc.Get("ID789"))

	alpha := doc.Get("ID123")
	require.NotNil(t, alpha)
	assert.Equal(t, "DB00001", alpha.Field(model.FieldDrugBankID).Text)
	assert.Equal(t, 100, alpha.Field(model.FieldDrugBankID).Confidence)
	flag := alpha.Field(model.FieldSingleSubstance).Flag
	require.NotNil(t, flag)
	assert.True(t, *flag)
	assert.True(t, alpha.AutoLookupAttempted)
	assert.True(t, doc.Get("ID456").AutoLookupAttempted)

	require.Len(t, summary.Outputs, 2)
	assert.Equal(t, filepath.Join(f.dir, "reports", "MedicinalProducts-Research-20250101-20250131.json"), summary.Outputs[0])
	assert.Equal(t, filepath.Join(f.dir, "reports", "MedicinalProducts-Research-20250101-20250131.csv"), summary.Outputs[1])
	for _, out := range summary.Outputs {
		assert.FileExists(t, out)
	}

	var names []string
	for _, ph := range summary.Phases {
		names = append(names, ph.Name)
	}
	assert.Equal(t, []string{"create", "knowledge_graph", "agent", "report"}, names)
	assert.Equal(t, model.PhaseStatusSkipped, summary.Phases[2].Status)
}

func TestEnrich_Idempotent(t *testing.T) {
	f := newFixture(t, "ID123,Drug Alpha,new")

	kg := newKG()
	kg.On("Lookup", mock.Anything, forConcept("ID123")).Return(found(model.SourceKnowledgeGraph, "ID123", map[model.FieldKey]model.FieldValue{
		model.FieldDrugBankID: model.TextValue("DB00001", 100),
	}), nil).Once()

	r := f.runner(Sources{KnowledgeGraph: kg})
	_, err := r.Enrich(context.Background())
	require.NoError(t, err)
	first, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	firstReport, err := os.ReadFile(filepath.Join(f.dir, "reports", "MedicinalProducts-Research-20250101-20250131.json"))
	require.NoError(t, err)

	// The knowledge graph is not asked again once attempted.
	summary, err := r.Enrich(context.Background())
	require.NoError(t, err)
	kg.AssertNumberOfCalls(t, "Lookup", 1)
	assert.Equal(t, 0, summary.Created)

	second, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	secondReport, err := os.ReadFile(filepath.Join(f.dir, "reports", "MedicinalProducts-Research-20250101-20250131.json"))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
	assert.Equal(t, string(firstReport), string(secondReport))
}

func TestEnrich_BreakerStopsDeadSource(t *testing.T) {
	f := newFixture(t, "A1,Alpha,new", "A2,Beta,new", "A3,Gamma,new", "A4,Delta,new")

	kg := newKG()
	kg.On("Lookup", mock.Anything, forConcept("A1")).Return(adapter.FailAll(model.SourceKnowledgeGraph, []model.Concept{{ID: "A1"}}, eris.Wrap(adapter.ErrUnavailable, "timeout")), nil).Once()
	kg.On("Lookup", mock.Anything, forConcept("A2")).Return(adapter.FailAll(model.SourceKnowledgeGraph, []model.Concept{{ID: "A2"}}, eris.Wrap(adapter.ErrUnavailable, "timeout")), nil).Once()

	cfg := f.config()
	cfg.BreakerThreshold = 2
	summary, err := New(cfg, f.fields, f.store, Sources{KnowledgeGraph: kg}).Enrich(context.Background())
	require.NoError(t, err)
	kg.AssertExpectations(t)
	kg.AssertNumberOfCalls(t, "Lookup", 2)

	tally := summary.Sources[model.SourceKnowledgeGraph]
	assert.Equal(t, 2, tally.Unavailable)
	assert.Equal(t, 2, tally.Skipped)
	assert.Equal(t, "open", summary.Phases[1].Metadata["circuit"])

	// Unavailable sources leave records at their defaults.
	doc := f.reload(t)
	for _, code := range []string{"A1", "A2", "A3", "A4"} {
		rec := doc.Get(code)
		require.NotNil(t, rec)
		assert.False(t, rec.AutoLookupAttempted, code)
		assert.True(t, rec.Field(model.FieldDrugBankID).IsEmpty(), code)
	}
}

func TestEnrich_TimeoutKeepsDefaults(t *testing.T) {
	f := newFixture(t, "ID321,Drug Delta,new")

	kg := newKG()
	kg.On("Lookup", mock.Anything, forConcept("ID321")).Return(adapter.FailAll(model.SourceKnowledgeGraph, []model.Concept{{ID: "ID321"}}, eris.Wrap(adapter.ErrUnavailable, context.DeadlineExceeded.Error())), nil).Once()

	summary, err := f.runner(Sources{KnowledgeGraph: kg}).Enrich(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sources[model.SourceKnowledgeGraph].Unavailable)

	rec := f.reload(t).Get("ID321")
	require.NotNil(t, rec)
	assert.False(t, rec.AutoLookupAttempted)
	assert.Empty(t, rec.ResearchedDate)

	data, err := os.ReadFile(summary.Outputs[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"completeness": "very_low"`)
}

func TestEnrich_AgentMalformedBatchDiscarded(t *testing.T) {
	f := newFixture(t, "ID123,Drug Alpha,new", "ID456,Drug Beta,new")

	agentSrc := &mockSource{name: model.SourceAgent}
	agentSrc.On("Lookup", mock.Anything, forConcept("ID123")).Return(adapter.FailAll(model.SourceAgent, []model.Concept{{ID: "ID123"}, {ID: "ID456"}}, eris.Wrap(adapter.ErrMalformed, "bad json")), nil).Once()

	summary, err := f.runner(Sources{Agent: agentSrc}).Enrich(context.Background())
	require.NoError(t, err)
	agentSrc.AssertExpectations(t)

	tally := summary.Sources[model.SourceAgent]
	assert.Equal(t, 2, tally.Malformed)
	assert.Equal(t, 0, tally.Applied)

	doc := f.reload(t)
	assert.False(t, doc.Get("ID123").Finalized())
	assert.True(t, doc.Get("ID123").Field(model.FieldDrugBankID).IsEmpty())
}

func TestEnrich_AgentSkipsFinalized(t *testing.T) {
	f := newFixture(t, "ID123,Drug Alpha,new", "ID456,Drug Beta,new")

	doc := model.NewDocument()
	rec, _ := doc.CreateIfAbsent(model.Concept{ID: "ID123", PreferredTerm: "Drug Alpha", Status: "new"}, f.fields)
	rec.ResearchedDate = "2025-01-15"
	rec.AutoLookupAttempted = true
	require.NoError(t, f.store.Save(doc))

	agentSrc := &mockSource{name: model.SourceAgent}
	agentSrc.On("Lookup", mock.Anything, mock.MatchedBy(func(cs []model.Concept) bool {
		return len(cs) == 1 && cs[0].ID == "ID456"
	})).Return(found(model.SourceAgent, "ID456", map[model.FieldKey]model.FieldValue{
		model.FieldPregnancyCategoryAU: model.TextValue("B3", 80),
	}), nil).Once()

	_, err := f.runner(Sources{Agent: agentSrc}).Enrich(context.Background())
	require.NoError(t, err)
	agentSrc.AssertExpectations(t)

	assert.Equal(t, "B3", f.reload(t).Get("ID456").Field(model.FieldPregnancyCategoryAU).Text)
}

func TestEnrich_LowerConfidenceRejected(t *testing.T) {
	f := newFixture(t, "ID123,Drug Alpha,new")

	kg := newKG()
	kg.On("Lookup", mock.Anything, forConcept("ID123")).Return(found(model.SourceKnowledgeGraph, "ID123", map[model.FieldKey]model.FieldValue{
		model.FieldDrugBankID: model.TextValue("DB00001", 100),
	}), nil).Once()
	agentSrc := &mockSource{name: model.SourceAgent}
	agentSrc.On("Lookup", mock.Anything, forConcept("ID123")).Return(found(model.SourceAgent, "ID123", map[model.FieldKey]model.FieldValue{
		model.FieldDrugBankID: model.TextValue("ID999", 50),
	}), nil).Once()

	summary, err := f.runner(Sources{KnowledgeGraph: kg, Agent: agentSrc}).Enrich(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Sources[model.SourceAgent].Applied)
	assert.Equal(t, "DB00001", f.reload(t).Get("ID123").Field(model.FieldDrugBankID).Text)
}

func TestEnrich_ReferenceOnCreation(t *testing.T) {
	f := newFixture(t, "ID123,Amitriptyline,new")

	ref := &mockSource{name: model.SourceReference}
	ref.On("Lookup", mock.Anything, forConcept("ID123")).Return(found(model.SourceReference, "ID123", map[model.FieldKey]model.FieldValue{
		model.FieldBeersCriteria: model.TextValue("Listed", 100),
	}), nil).Once()

	r := f.runner(Sources{Reference: ref})
	_, err := r.Enrich(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Listed", f.reload(t).Get("ID123").Field(model.FieldBeersCriteria).Text)

	// Existing records are not looked up again.
	_, err = r.Enrich(context.Background())
	require.NoError(t, err)
	ref.AssertNumberOfCalls(t, "Lookup", 1)
}

func TestEnrich_MissingListing(t *testing.T) {
	f := newFixture(t, "ID123,Drug Alpha,new")
	cfg := f.config()
	cfg.ListingPath = filepath.Join(f.dir, "absent.csv")

	_, err := New(cfg, f.fields, f.store, Sources{}).Enrich(context.Background())
	require.Error(t, err)
	assert.True(t, eris.Is(err, listing.ErrMissingInput))
	assert.NoFileExists(t, f.store.Path())
}

func TestEnrich_ListingMissingColumnsIsFatal(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.listing, []byte("concept_ID,term\nID123,Drug Alpha\n"), 0o644))

	_, err := f.runner(Sources{}).Enrich(context.Background())
	require.Error(t, err)
	assert.False(t, eris.Is(err, listing.ErrMissingInput))
	assert.Contains(t, err.Error(), "missing required columns")
	assert.NoFileExists(t, f.store.Path())
}

func TestEnrich_StoreLoadFails(t *testing.T) {
	f := newFixture(t, "ID123,Drug Alpha,new")
	st := &mockStore{}
	st.On("Load").Return(nil, eris.New("store: corrupt research document"))

	_, err := New(f.config(), f.fields, st, Sources{}).Enrich(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt")
	st.AssertNotCalled(t, "Save", mock.Anything)
}

func TestEnrich_CheckpointFails(t *testing.T) {
	f := newFixture(t, "ID123,Drug Alpha,new")
	st := &mockStore{}
	st.On("Load").Return(model.NewDocument(), nil)
	st.On("Save", mock.Anything).Return(eris.New("disk full")).Once()

	_, err := New(f.config(), f.fields, st, Sources{}).Enrich(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkpoint after knowledge_graph")
	st.AssertExpectations(t)
}

func TestReport_WritesFormats(t *testing.T) {
	f := newFixture(t, "ID123,Drug Alpha,new")
	cfg := f.config()
	cfg.AggregateFormat = "yaml"
	cfg.TabularFormat = "xlsx"

	summary, err := New(cfg, f.fields, f.store, Sources{}).Report(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Outputs, 2)
	assert.True(t, strings.HasSuffix(summary.Outputs[0], ".yaml"))
	assert.True(t, strings.HasSuffix(summary.Outputs[1], ".xlsx"))

	data, err := os.ReadFile(summary.Outputs[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "record_count: 1")

	// Reports never write the store.
	assert.NoFileExists(t, f.store.Path())
}

func TestPending(t *testing.T) {
	f := newFixture(t, "ID123,Drug Alpha,new", "ID456,Drug Beta,new", "ID789,Drug Gamma,existing")

	doc := model.NewDocument()
	rec, _ := doc.CreateIfAbsent(model.Concept{ID: "ID123", Status: "new"}, f.fields)
	rec.ResearchedDate = "2025-01-15"
	require.NoError(t, f.store.Save(doc))

	pending, err := f.runner(Sources{}).Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "ID456", pending[0].ID)
}
