package export

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func payoutTable() Table {
	return Table{
		Title:    "Payouts 2026-09",
		Subtitle: "2026-09-01 to 2026-09-30",
		Columns: []Column{
			{Key: "agent_id", Label: "Agent"},
			{Key: "role", Label: "Role"},
			{Key: "count", Label: "Commissions", Numeric: true},
			{Key: "total", Label: "Total", Numeric: true},
		},
		Rows: [][]interface{}{
			{"agent-1", "coach", 2, decimal.RequireFromString("100")},
			{"agent-2", "closer", 1, decimal.RequireFromString("80.5")},
		},
		Footer: []interface{}{"Total", "", 3, decimal.RequireFromString("180.5")},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"csv", FormatCSV},
		{" XLSX ", FormatXLSX},
		{"excel", FormatXLSX},
		{"Pdf", FormatPDF},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseFormat("docx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, payoutTable()))

	want := "Agent,Role,Commissions,Total\n" +
		"agent-1,coach,2,100.00\n" +
		"agent-2,closer,1,80.50\n" +
		"Total,,3,180.50\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, payoutTable()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Payouts 2026-09"}, f.GetSheetList())

	rows, err := f.GetRows("Payouts 2026-09")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Agent", "Role", "Commissions", "Total"}, rows[0])
	assert.Equal(t, "agent-1", rows[1][0])
	assert.Equal(t, "Total", rows[3][0])

	raw, err := f.GetCellValue("Payouts 2026-09", "D4", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "180.5", raw)
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatPDF, payoutTable()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestWriteUnsupported(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, Format("docx"), payoutTable())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Payouts 2026-09", sheetName("Payouts 2026/09"))
	assert.Len(t, sheetName("a very long title that exceeds the worksheet limit"), 31)
	assert.Equal(t, "ab-c", sheetName("a[b]/c?"))
}
