package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const (
	listingPrefix = "SNOMEDCT-AU-MedicinalProducts-"
	outputPrefix  = "MedicinalProducts-Research-"
	xlsxSheetName = "Research"
)

// DateRange extracts the date range from a listing file name, falling back
// to the base name without extension.
func DateRange(listingPath string) string {
	base := filepath.Base(listingPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimPrefix(base, listingPrefix)
}

// OutputPath returns the report path in dir for the listing and format.
func OutputPath(dir, listingPath, format string) string {
	return filepath.Join(dir, outputPrefix+DateRange(listingPath)+"."+format)
}

// WriteAggregate encodes agg as JSON (two-space indent) or YAML.
func WriteAggregate(w io.Writer, agg *Aggregate, format string) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(agg); err != nil {
			return eris.Wrap(err, "report: encode aggregate json")
		}
		return nil
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(agg); err != nil {
			return eris.Wrap(err, "report: encode aggregate yaml")
		}
		return eris.Wrap(enc.Close(), "report: close yaml encoder")
	default:
		return eris.Errorf("report: unsupported aggregate format %q", format)
	}
}

// WriteTabular writes rows as CSV or as a single-sheet XLSX workbook.
func WriteTabular(w io.Writer, rows [][]string, format string) error {
	switch format {
	case FormatCSV, "":
		cw := csv.NewWriter(w)
		if err := cw.WriteAll(rows); err != nil {
			return eris.Wrap(err, "report: write csv")
		}
		return nil
	case FormatXLSX:
		f := xlsx.NewFile()
		sheet, err := f.AddSheet(xlsxSheetName)
		if err != nil {
			return eris.Wrap(err, "report: add xlsx sheet")
		}
		for _, r := range rows {
			row := sheet.AddRow()
			for _, v := range r {
				row.AddCell().SetString(v)
			}
		}
		if err := f.Write(w); err != nil {
			return eris.Wrap(err, "report: write xlsx")
		}
		return nil
	default:
		return eris.Errorf("report: unsupported tabular format %q", format)
	}
}

// WriteFile renders into a buffer and writes path only on success.
func WriteFile(path string, render func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "report: create directory for %s", path)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}
	return nil
}
