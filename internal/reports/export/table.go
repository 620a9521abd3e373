package export

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Format is an export file type
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat accepts csv, xlsx (or excel) and pdf in any casing
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

func (f Format) Extension() string {
	return "." + string(f)
}

// Column describes one exported field
type Column struct {
	Key     string
	Label   string
	Numeric bool
	Width   float64
}

// Table is the format-independent content of an export
type Table struct {
	Title    string
	Subtitle string
	Columns  []Column
	Rows     [][]interface{}
	// Footer is an optional totals row aligned with Columns
	Footer []interface{}
}

func (t Table) labels() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Label
	}
	return out
}

// Write renders t in the given format
func Write(w io.Writer, format Format, t Table) error {
	switch format {
	case FormatCSV:
		e := NewCSVExporter(w, DefaultCSVOptions())
		if err := e.WriteHeader(t.labels()); err != nil {
			return err
		}
		if err := e.WriteRows(t.Rows); err != nil {
			return err
		}
		if t.Footer != nil {
			if err := e.WriteRow(t.Footer); err != nil {
				return err
			}
		}
		return e.Flush()

	case FormatXLSX:
		opts := DefaultExcelOptions()
		if t.Title != "" {
			opts.SheetName = sheetName(t.Title)
		}
		e := NewExcelExporter(opts)
		defer e.Close()
		if err := e.WriteTable(t); err != nil {
			return err
		}
		return e.Write(w)

	case FormatPDF:
		opts := DefaultPDFOptions()
		opts.Title = t.Title
		opts.Subtitle = t.Subtitle
		g := NewPDFGenerator(opts)
		if err := g.GenerateReport(t); err != nil {
			return err
		}
		return g.Write(w)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// sheetName trims a title to the 31 characters a worksheet name allows
func sheetName(title string) string {
	r := strings.NewReplacer(":", "", "\\", "", "/", "-", "?", "", "*", "", "[", "", "]", "")
	name := r.Replace(title)
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
