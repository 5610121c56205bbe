// Package listing loads the input listing of coded concepts and prepares it
// from the upstream change report.
package listing

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/genericrobot77/meds-job/internal/fetcher"
	"github.com/genericrobot77/meds-job/internal/model"
)

// Listing column names.
const (
	ColConceptID     = "concept_ID"
	ColPreferredTerm = "preferred_term"
	ColStatus        = "status"
	ColURI           = "SNOMED_uri"
	ColSemanticTag   = "semantic_tag"
)

// Defaults applied when Options leaves a value empty.
const (
	DefaultSemanticTag = "medicinal product"
	DefaultURIBase     = "http://snomed.info/id/"
)

// ErrMissingInput is returned when the listing file does not exist.
var ErrMissingInput = eris.New("listing: input not found")

var requiredColumns = []string{ColConceptID, ColPreferredTerm, ColStatus}

// Options controls listing filtering and URI derivation.
type Options struct {
	// SemanticTag keeps only rows whose semantic_tag matches, ignoring case.
	// It is applied only when the column exists. Use "-" to disable.
	SemanticTag string
	// URIBase is prefixed to the concept code when a row has no URI.
	URIBase string
}

func (o Options) withDefaults() Options {
	if o.SemanticTag == "" {
		o.SemanticTag = DefaultSemanticTag
	}
	if o.SemanticTag == "-" {
		o.SemanticTag = ""
	}
	if o.URIBase == "" {
		o.URIBase = DefaultURIBase
	}
	return o
}

// Load reads the listing at path (CSV or XLSX) and returns its concepts in
// file order. Rows with a blank code are skipped; a repeated code keeps its
// first occurrence.
func Load(ctx context.Context, path string, opts Options) ([]model.Concept, error) {
	tbl, err := open(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(tbl, path); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	filterTag := opts.SemanticTag != "" && tbl.Has(ColSemanticTag)

	seen := make(map[string]bool, len(tbl.Rows))
	concepts := make([]model.Concept, 0, len(tbl.Rows))
	var dropped, dupes int
	for _, row := range tbl.Rows {
		id := tbl.Value(row, ColConceptID)
		if id == "" {
			continue
		}
		if filterTag && !strings.EqualFold(tbl.Value(row, ColSemanticTag), opts.SemanticTag) {
			dropped++
			continue
		}
		if seen[id] {
			dupes++
			continue
		}
		seen[id] = true

		uri := tbl.Value(row, ColURI)
		if uri == "" {
			uri = opts.URIBase + id
		}
		concepts = append(concepts, model.Concept{
			ID:            id,
			PreferredTerm: tbl.Value(row, ColPreferredTerm),
			Status:        tbl.Value(row, ColStatus),
			URI:           uri,
		})
	}

	zap.L().Debug("listing: loaded",
		zap.String("path", path),
		zap.Int("concepts", len(concepts)),
		zap.Int("filtered", dropped),
		zap.Int("duplicates", dupes),
	)
	return concepts, nil
}

func open(ctx context.Context, path string) (*fetcher.Table, error) {
	if path == "" {
		return nil, eris.Wrap(ErrMissingInput, "listing: no path given")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(ErrMissingInput, "listing: %s", path)
		}
		return nil, eris.Wrapf(err, "listing: stat %s", path)
	}
	tbl, err := fetcher.ReadFile(ctx, path)
	if err != nil {
		return nil, eris.Wrapf(err, "listing: read %s", path)
	}
	return tbl, nil
}

func checkColumns(tbl *fetcher.Table, path string) error {
	var missing []string
	for _, col := range requiredColumns {
		if !tbl.Has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("listing: %s is missing required columns: %s", path, strings.Join(missing, ", "))
	}
	return nil
}

// Latest returns the most recently modified file matching the glob pattern.
func Latest(pattern string) (string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", eris.Wrapf(err, "listing: bad pattern %q", pattern)
	}
	var best string
	var bestMod int64
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if mod := info.ModTime().UnixNano(); best == "" || mod > bestMod {
			best, bestMod = m, mod
		}
	}
	if best == "" {
		return "", eris.Wrapf(ErrMissingInput, "listing: nothing matches %s", pattern)
	}
	return best, nil
}
