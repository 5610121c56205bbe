package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genericrobot77/meds-job/internal/listing"
	"github.com/genericrobot77/meds-job/internal/model"
)

func writeImport(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "results.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestImport_Merges(t *testing.T) {
	f := newFixture(t, "ID123,Drug Alpha,new", "ID456,Drug Beta,new")
	path := writeImport(t, f.dir, "```json\n"+`{
  "ID123": {
    "drugbank_id": {"value": "DB00001", "confidence": 90},
    "atc_codes": {"value": ["N02BE01", "N02BE01"], "confidence": 80},
    "researched_date": "2025-01-20"
  }
}`+"\n```")

	summary, err := f.runner(Sources{}).Import(context.Background(), path)
	require.NoError(t, err)

	tally := summary.Sources[model.SourceImport]
	assert.Equal(t, 1, tally.Found)
	assert.Equal(t, 1, tally.NoData)

	doc := f.reload(t)
	alpha := doc.Get("ID123")
	assert.Equal(t, "DB00001", alpha.Field(model.FieldDrugBankID).Text)
	assert.Equal(t, []string{"N02BE01"}, alpha.Field(model.FieldATCCodes).List)
	assert.Equal(t, "2025-01-20", alpha.ResearchedDate)
	assert.False(t, doc.Get("ID456").Finalized())
	assert.Len(t, summary.Outputs, 2)

	var names []string
	for _, ph := range summary.Phases {
		names = append(names, ph.Name)
		assert.Equal(t, model.PhaseStatusComplete, ph.Status, ph.Name)
	}
	assert.Equal(t, []string{"parse", "create", "import", "report"}, names)
	assert.Equal(t, 3, summary.Phases[2].Metadata["applied"]) // drugbank, atc and the single-substance flag
}

func TestImport_MalformedLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t, "ID123,Drug Alpha,new", "ID456,Drug Beta,new")
	path := writeImport(t, f.dir, `{"ID123": {"drugbank_id": `)

	summary, err := f.runner(Sources{}).Import(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Sources[model.SourceImport].Malformed)
	assert.NoFileExists(t, f.store.Path())
	assert.Equal(t, model.PhaseStatusFailed, summary.Phases[0].Status)
	// Reports are produced from whatever data exists.
	assert.Len(t, summary.Outputs, 2)
}

func TestImport_MissingFile(t *testing.T) {
	f := newFixture(t, "ID123,Drug Alpha,new")

	_, err := f.runner(Sources{}).Import(context.Background(), filepath.Join(f.dir, "nope.json"))
	require.Error(t, err)
	assert.True(t, eris.Is(err, listing.ErrMissingInput))
}

func TestManual_QuitPersists(t *testing.T) {
	f := newFixture(t, "ID123,Drug Alpha,new", "ID456,Drug Beta,new")

	var out bytes.Buffer
	summary, sess, err := f.runner(Sources{}).Manual(context.Background(), strings.NewReader("DB00042\nq\n"), &out)
	require.NoError(t, err)

	assert.True(t, sess.Quit)
	assert.Equal(t, 2, sess.Total)
	assert.Equal(t, 0, sess.Completed)
	assert.Contains(t, out.String(), "Drug Alpha")

	doc := f.reload(t)
	alpha := doc.Get("ID123")
	require.NotNil(t, alpha)
	assert.Equal(t, "DB00042", alpha.Field(model.FieldDrugBankID).Text)
	assert.False(t, alpha.Finalized())
	assert.NotNil(t, doc.Get("ID456"))
	assert.Len(t, summary.Outputs, 2)
}

func TestManual_SkipThenEOF(t *testing.T) {
	f := newFixture(t, "ID123,Drug Alpha,new")

	var out bytes.Buffer
	_, sess, err := f.runner(Sources{}).Manual(context.Background(), strings.NewReader("s\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Skipped)
	assert.FileExists(t, f.store.Path())
}

func TestManual_NothingPending(t *testing.T) {
	f := newFixture(t, "ID789,Drug Gamma,existing")

	var out bytes.Buffer
	_, sess, err := f.runner(Sources{}).Manual(context.Background(), strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.Equal(t, 0, sess.Total)
	assert.Contains(t, out.String(), "All products have been researched")
}
