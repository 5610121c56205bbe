package listing

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// PrepareResult describes a prepare run.
type PrepareResult struct {
	Source string `json:"source"`
	Output string `json:"output"`
	Total  int    `json:"total"`
	Kept   int    `json:"kept"`
}

// PreparedName derives the listing file name from a change report name.
func PreparedName(src string) string {
	return strings.Replace(filepath.Base(src), "concept-changes", "MedicinalProducts", 1)
}

// Prepare filters the change report at src down to rows with the configured
// semantic tag and writes them as CSV to dst, adding a SNOMED_uri column
// after concept_ID when the report lacks one. All other columns are kept.
func Prepare(ctx context.Context, src, dst string, opts Options) (*PrepareResult, error) {
	tbl, err := open(ctx, src)
	if err != nil {
		return nil, err
	}
	if !tbl.Has(ColConceptID) {
		return nil, eris.Errorf("listing: %s is missing required column %s", src, ColConceptID)
	}
	opts = opts.withDefaults()
	filterTag := opts.SemanticTag != "" && tbl.Has(ColSemanticTag)

	idCol := tbl.Column(ColConceptID)
	addURI := !tbl.Has(ColURI)
	header := tbl.Header
	if addURI {
		header = insertAt(header, idCol+1, ColURI)
	}

	out := [][]string{header}
	for _, row := range tbl.Rows {
		if filterTag && !strings.EqualFold(tbl.Value(row, ColSemanticTag), opts.SemanticTag) {
			continue
		}
		cells := pad(row, len(tbl.Header))
		if addURI {
			cells = insertAt(cells, idCol+1, opts.URIBase+strings.TrimSpace(cells[idCol]))
		}
		out = append(out, cells)
	}

	if err := writeCSV(dst, out); err != nil {
		return nil, err
	}

	res := &PrepareResult{Source: src, Output: dst, Total: len(tbl.Rows), Kept: len(out) - 1}
	zap.L().Info("listing: prepared",
		zap.String("source", src),
		zap.String("output", dst),
		zap.Int("total", res.Total),
		zap.Int("kept", res.Kept),
	)
	return res, nil
}

func insertAt(s []string, i int, v string) []string {
	out := make([]string, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, v)
	return append(out, s[i:]...)
}

func pad(row []string, n int) []string {
	out := make([]string, n)
	copy(out, row)
	return out
}

func writeCSV(path string, rows [][]string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "listing: create %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "listing: create %s", path)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "listing: write %s", path)
	}
	return eris.Wrapf(f.Close(), "listing: close %s", path)
}
