package listing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, t.TempDir(), "listing.csv",
		"concept_ID,SNOMED_uri,preferred_term,status\n"+
			"111,http://snomed.info/id/111,Drug Alpha,new\n"+
			"222,,Drug Beta,inactivated\n"+
			"111,,Drug Alpha again,new\n"+
			",,Orphan,new\n")

	concepts, err := Load(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, concepts, 2)

	assert.Equal(t, "111", concepts[0].ID)
	assert.Equal(t, "Drug Alpha", concepts[0].PreferredTerm)
	assert.True(t, concepts[0].IsNew())
	assert.Equal(t, "http://snomed.info/id/222", concepts[1].URI)
	assert.False(t, concepts[1].IsNew())
}

func TestLoad_SemanticTagFilter(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "listing.csv",
		"concept_ID,preferred_term,status,semantic_tag\n"+
			"1,Drug One,new,Medicinal Product\n"+
			"2,Drug Two tablet,new,real clinical drug\n")

	concepts, err := Load(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, concepts, 1)
	assert.Equal(t, "1", concepts[0].ID)

	all, err := Load(context.Background(), path, Options{SemanticTag: "-"})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLoad_CustomURIBase(t *testing.T) {
	path := writeFile(t, t.TempDir(), "listing.csv", "concept_ID,preferred_term,status\n9,Nine,new\n")

	concepts, err := Load(context.Background(), path, Options{URIBase: "urn:test:"})
	require.NoError(t, err)
	require.Len(t, concepts, 1)
	assert.Equal(t, "urn:test:9", concepts[0].URI)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.csv"), Options{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrMissingInput))

	_, err = Load(context.Background(), "", Options{})
	assert.True(t, eris.Is(err, ErrMissingInput))
}

func TestLoad_MissingColumns(t *testing.T) {
	path := writeFile(t, t.TempDir(), "listing.csv", "concept_ID,term\n1,x\n")

	_, err := Load(context.Background(), path, Options{})
	require.Error(t, err)
	assert.False(t, eris.Is(err, ErrMissingInput))
	assert.Contains(t, err.Error(), "preferred_term")
	assert.Contains(t, err.Error(), "status")
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	older := writeFile(t, dir, "SNOMEDCT-AU-MedicinalProducts-20250101-20250131.csv", "x")
	newer := writeFile(t, dir, "SNOMEDCT-AU-MedicinalProducts-20250201-20250228.csv", "x")
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	got, err := Latest(filepath.Join(dir, "SNOMEDCT-AU-MedicinalProducts-*.csv"))
	require.NoError(t, err)
	assert.Equal(t, newer, got)

	_, err = Latest(filepath.Join(dir, "nothing-*.csv"))
	assert.True(t, eris.Is(err, ErrMissingInput))
}

func TestPreparedName(t *testing.T) {
	assert.Equal(t,
		"SNOMEDCT-AU-MedicinalProducts-20250101-20250131.csv",
		PreparedName("/in/SNOMEDCT-AU-concept-changes-20250101-20250131.csv"))
}

func TestPrepare(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "SNOMEDCT-AU-concept-changes-20250101-20250131.csv",
		"concept_ID,preferred_term,status,semantic_tag,change_type\n"+
			"1,Drug One,new,medicinal product,added\n"+
			"2,Drug Two 5 mg tablet,new,real clinical drug,added\n"+
			"3,Drug Three,inactivated,MEDICINAL PRODUCT,\n")
	dst := filepath.Join(dir, "out", PreparedName(src))

	res, err := Prepare(context.Background(), src, dst, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Kept)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t,
		"concept_ID,SNOMED_uri,preferred_term,status,semantic_tag,change_type\n"+
			"1,http://snomed.info/id/1,Drug One,new,medicinal product,added\n"+
			"3,http://snomed.info/id/3,Drug Three,inactivated,MEDICINAL PRODUCT,\n",
		string(data))

	concepts, err := Load(context.Background(), dst, Options{})
	require.NoError(t, err)
	require.Len(t, concepts, 2)
	assert.Equal(t, "http://snomed.info/id/3", concepts[1].URI)
}

func TestPrepare_KeepsExistingURI(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "report.csv", "concept_ID,SNOMED_uri,preferred_term,status\n1,urn:x,One,new\n")
	dst := filepath.Join(dir, "prepared.csv")

	_, err := Prepare(context.Background(), src, dst, Options{})
	require.NoError(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "concept_ID,SNOMED_uri,preferred_term,status\n1,urn:x,One,new\n", string(data))
}

func TestPrepare_Missing(t *testing.T) {
	dir := t.TempDir()
	_, err := Prepare(context.Background(), filepath.Join(dir, "nope.csv"), filepath.Join(dir, "out.csv"), Options{})
	assert.True(t, eris.Is(err, ErrMissingInput))
}
