package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/genericrobot77/meds-job/internal/adapter"
	"github.com/genericrobot77/meds-job/internal/model"
	"github.com/genericrobot77/meds-job/internal/store"
)

const listingName = "SNOMEDCT-AU-MedicinalProducts-20250101-20250131.csv"

var fixedNow = func() time.Time { return time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC) }

// writeListing writes a listing with the given data lines below the header.
func writeListing(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, listingName)
	body := "concept_ID,preferred_term,status\n" + strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

type fixture struct {
	dir     string
	listing string
	store   *store.FileStore
	fields  *model.FieldRegistry
}

func newFixture(t *testing.T, lines ...string) *fixture {
	t.Helper()
	dir := t.TempDir()
	fields := model.DefaultFields()
	return &fixture{
		dir:     dir,
		listing: writeListing(t, dir, lines...),
		store:   store.New(filepath.Join(dir, "research.json"), fields),
		fields:  fields,
	}
}

func (f *fixture) config() Config {
	return Config{
		ListingPath:      f.listing,
		ReportsDir:       filepath.Join(f.dir, "reports"),
		ListDelimiter:    "; ",
		BreakerThreshold: 5,
		Now:              fixedNow,
	}
}

func (f *fixture) runner(sources Sources) *Runner {
	return New(f.config(), f.fields, f.store, sources)
}

func (f *fixture) reload(t *testing.T) *model.Document {
	t.Helper()
	doc, err := f.store.Load()
	require.NoError(t, err)
	return doc
}

func found(src model.Source, id string, fields map[model.FieldKey]model.FieldValue) []adapter.Result {
	c := model.NewCandidates(src)
	for k, v := range fields {
		c.Set(k, v)
	}
	return []adapter.Result{{ConceptID: id, Outcome: adapter.Found, Candidates: c}}
}

func noData(src model.Source, id string) []adapter.Result {
	return []adapter.Result{{ConceptID: id, Outcome: adapter.NoData, Candidates: model.NewCandidates(src)}}
}
