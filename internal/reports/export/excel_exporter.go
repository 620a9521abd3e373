package export

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ExcelExporter exports data to Excel format
type ExcelExporter struct {
	file    *excelize.File
	options ExcelOptions
	styles  map[string]int
}

// ExcelOptions configures Excel export behavior
type ExcelOptions struct {
	SheetName    string            `json:"sheet_name"`
	FreezeHeader bool              `json:"freeze_header"`
	AutoFilter   bool              `json:"auto_filter"`
	NumberFormat string            `json:"number_format"`
	HeaderStyle  *ExcelStyleConfig `json:"header_style,omitempty"`
	AutoWidth    bool              `json:"auto_width"`
}

// ExcelStyleConfig defines style for cells
type ExcelStyleConfig struct {
	FontBold  bool   `json:"font_bold"`
	FontSize  int    `json:"font_size"`
	FontColor string `json:"font_color"`
	FillColor string `json:"fill_color"`
	Alignment string `json:"alignment"`
	Border    bool   `json:"border"`
}

// DefaultExcelOptions returns default Excel export options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		SheetName:    "Payouts",
		FreezeHeader: true,
		AutoFilter:   true,
		NumberFormat: "#,##0.00",
		AutoWidth:    true,
		HeaderStyle: &ExcelStyleConfig{
			FontBold:  true,
			FontSize:  11,
			FillColor: "4472C4",
			FontColor: "FFFFFF",
			Alignment: "center",
			Border:    true,
		},
	}
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(options ExcelOptions) *ExcelExporter {
	file := excelize.NewFile()
	_ = file.SetSheetName("Sheet1", options.SheetName)

	return &ExcelExporter{
		file:    file,
		options: options,
		styles:  make(map[string]int),
	}
}

// WriteTable writes header, rows and the optional footer to the sheet
func (e *ExcelExporter) WriteTable(t Table) error {
	sheet := e.options.SheetName

	if err := e.writeHeader(t.labels()); err != nil {
		return err
	}

	widths := make([]float64, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = float64(len(c.Label)) * 1.2
	}

	rows := t.Rows
	if t.Footer != nil {
		rows = append(rows[:len(rows):len(rows)], t.Footer)
	}
	for r, row := range rows {
		for c, val := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := e.setCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
			if c < len(widths) {
				if w := float64(len(fmt.Sprintf("%v", val))) * 1.2; w > widths[c] {
					widths[c] = w
				}
			}
		}
	}

	if t.Footer != nil {
		bold, err := e.style("footer", &excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return err
		}
		first, _ := excelize.CoordinatesToCellName(1, len(rows)+1)
		last, _ := excelize.CoordinatesToCellName(len(t.Columns), len(rows)+1)
		if err := e.file.SetCellStyle(sheet, first, last, bold); err != nil {
			return err
		}
	}

	if e.options.AutoFilter && len(t.Rows) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(t.Columns), len(t.Rows)+1)
		if err := e.file.AutoFilter(sheet, "A1:"+last, nil); err != nil {
			return err
		}
	}

	if e.options.AutoWidth {
		for i, w := range widths {
			col, _ := excelize.ColumnNumberToName(i + 1)
			// Min width 10, max width 50
			w = min(max(w, 10), 50)
			if err := e.file.SetColWidth(sheet, col, col, w); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *ExcelExporter) writeHeader(columns []string) error {
	sheet := e.options.SheetName

	headerStyleID := 0
	if e.options.HeaderStyle != nil {
		id, err := e.style("header", headerStyle(e.options.HeaderStyle))
		if err != nil {
			return fmt.Errorf("failed to create header style: %w", err)
		}
		headerStyleID = id
	}

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := e.file.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
		if headerStyleID > 0 {
			if err := e.file.SetCellStyle(sheet, cell, cell, headerStyleID); err != nil {
				return err
			}
		}
	}

	if e.options.FreezeHeader {
		return e.file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	return nil
}

// Write writes the workbook to w
func (e *ExcelExporter) Write(w io.Writer) error {
	return e.file.Write(w)
}

// Close closes the Excel file
func (e *ExcelExporter) Close() error {
	return e.file.Close()
}

// style creates a named style once per workbook
func (e *ExcelExporter) style(name string, s *excelize.Style) (int, error) {
	if id, ok := e.styles[name]; ok {
		return id, nil
	}
	id, err := e.file.NewStyle(s)
	if err != nil {
		return 0, err
	}
	e.styles[name] = id
	return id, nil
}

func headerStyle(config *ExcelStyleConfig) *excelize.Style {
	style := &excelize.Style{
		Font: &excelize.Font{
			Bold:  config.FontBold,
			Size:  float64(config.FontSize),
			Color: config.FontColor,
		},
	}
	if config.FillColor != "" {
		style.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{config.FillColor}}
	}
	if config.Alignment != "" {
		style.Alignment = &excelize.Alignment{Horizontal: config.Alignment}
	}
	if config.Border {
		style.Border = []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		}
	}
	return style
}

// setCellValue sets a cell value with appropriate formatting
func (e *ExcelExporter) setCellValue(sheet, cell string, val interface{}) error {
	switch v := val.(type) {
	case nil:
		return e.file.SetCellValue(sheet, cell, "")
	case decimal.Decimal:
		if err := e.file.SetCellValue(sheet, cell, v.InexactFloat64()); err != nil {
			return err
		}
		id, err := e.style("money", &excelize.Style{CustomNumFmt: &e.options.NumberFormat})
		if err != nil {
			return err
		}
		return e.file.SetCellStyle(sheet, cell, cell, id)
	case time.Time:
		if v.IsZero() {
			return e.file.SetCellValue(sheet, cell, "")
		}
		if err := e.file.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
		// 22 = m/d/yy h:mm
		id, err := e.style("timestamp", &excelize.Style{NumFmt: 22})
		if err != nil {
			return err
		}
		return e.file.SetCellStyle(sheet, cell, cell, id)
	default:
		return e.file.SetCellValue(sheet, cell, v)
	}
}
