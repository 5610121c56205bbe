// Package fetcher reads tabular input files (CSV and XLSX) into header-keyed
// tables.
package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is a header row plus data rows.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// NewTable indexes header for case-insensitive column lookups. A UTF-8
// byte-order mark on the first column is dropped.
func NewTable(header []string, rows [][]string) *Table {
	t := &Table{Header: header, Rows: rows, index: make(map[string]int, len(header))}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
			t.Header[0] = h
		}
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := t.index[key]; !dup {
			t.index[key] = i
		}
	}
	return t
}

// Column returns the index of the named column, or -1.
func (t *Table) Column(name string) int {
	if i, ok := t.index[strings.ToLower(strings.TrimSpace(name))]; ok {
		return i
	}
	return -1
}

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool {
	return t.Column(name) >= 0
}

// Value returns the trimmed cell of row in the named column, or "" when the
// column is absent or the row is short.
func (t *Table) Value(row []string, name string) string {
	i := t.Column(name)
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ReadFile reads a CSV or XLSX file, chosen by extension. The first row is
// the header.
func ReadFile(ctx context.Context, path string) (*Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		rows, err := ReadXLSX(path, XLSXOptions{})
		if err != nil {
			return nil, err
		}
		return tableFromRows(rows), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return ReadCSV(ctx, f, CSVOptions{HasHeader: true, TrimSpace: true})
}

func tableFromRows(rows [][]string) *Table {
	if len(rows) == 0 {
		return NewTable(nil, nil)
	}
	return NewTable(rows[0], rows[1:])
}
