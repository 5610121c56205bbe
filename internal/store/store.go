// Package store persists the research document as a single keyed JSON file.
package store

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/genericrobot77/meds-job/internal/model"
)

// ErrCorrupt is returned when the research document cannot be parsed.
var ErrCorrupt = eris.New("store: corrupt research document")

// Store loads and saves the research document.
type Store interface {
	Load() (*model.Document, error)
	Save(doc *model.Document) error
	Path() string
}

// FileStore is a Store backed by one JSON file.
type FileStore struct {
	path   string
	fields *model.FieldRegistry
}

// Compile-time interface check.
var _ Store = (*FileStore)(nil)

// New creates a FileStore at path for the given fields.
func New(path string, fields *model.FieldRegistry) *FileStore {
	return &FileStore{path: path, fields: fields}
}

// Path returns the document location.
func (s *FileStore) Path() string { return s.path }

// Load reads the document. A missing file yields an empty document.
func (s *FileStore) Load() (*model.Document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		zap.L().Debug("store: no research document, starting empty", zap.String("path", s.path))
		return model.NewDocument(), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: read %s", s.path)
	}

	doc, err := Decode(data, s.fields)
	if err != nil {
		return nil, eris.Wrapf(err, "store: load %s", s.path)
	}

	zap.L().Debug("store: loaded research document",
		zap.String("path", s.path),
		zap.Int("records", doc.Len()),
	)
	return doc, nil
}

// Save writes the full document atomically: a temp file in the target
// directory is written, synced and renamed over the destination.
func (s *FileStore) Save(doc *model.Document) error {
	data, err := Encode(doc, s.fields)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "store: create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".research-*.json")
	if err != nil {
		return eris.Wrap(err, "store: create temp file")
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "store: write temp file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "store: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "store: close temp file")
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return eris.Wrapf(err, "store: replace %s", s.path)
	}

	zap.L().Info("store: saved research document",
		zap.String("path", s.path),
		zap.Int("records", doc.Len()),
	)
	return nil
}
