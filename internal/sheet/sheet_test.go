package sheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Joshypeace/PharmaStore/internal/core"
)

func TestParseCSV(t *testing.T) {
	data := "\xEF\xBB\xBFCategory,Type,Name,Price,Stock\n" +
		"Analgesics,Tablet,Panadol,500,10\n" +
		",,,,\n" +
		"Antibiotics,Capsule,\"Amoxil, 500mg\",1200,3\n"

	s, err := Parse("items.csv", []byte(data))
	require.NoError(t, err)

	assert.Equal(t, FormatCSV, s.Format)
	assert.Equal(t, []string{"Category", "Type", "Name", "Price", "Stock"}, s.Header)
	require.Len(t, s.Rows, 2, "blank row should be dropped")

	assert.Equal(t, 2, s.Rows[0].Line)
	assert.Equal(t, "Panadol", s.Rows[0].Cells["Name"])
	assert.Equal(t, 4, s.Rows[1].Line)
	assert.Equal(t, "Amoxil, 500mg", s.Rows[1].Cells["Name"])
}

func TestParseCSV_Semicolon(t *testing.T) {
	data := "category;type;name;price;stock\nAnalgesics;Tablet;Panadol;500;10\n"

	s, err := ParseCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, s.Rows, 1)
	assert.Equal(t, "10", s.Rows[0].Cells["stock"])
}

func TestParseCSV_ShortAndLongRecords(t *testing.T) {
	data := "category,type,name\nA,Tablet\nB,Syrup,Benylin,extra\n"

	s, err := ParseCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, s.Rows, 2)

	_, hasName := s.Rows[0].Cells["name"]
	assert.False(t, hasName)
	assert.Equal(t, "Benylin", s.Rows[1].Cells["name"])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		data     []byte
		want     string
	}{
		{"empty", "a.csv", nil, "empty file"},
		{"whitespace only", "a.csv", []byte(" \n\n"), "empty file"},
		{"unsupported extension", "a.pdf", []byte("%PDF-1.4"), "unsupported file type"},
		{"corrupt workbook", "a.xlsx", []byte("PK\x03\x04 not really a zip"), "invalid xlsx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.fileName, tt.data)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, IsFileError(err))
			assert.True(t, core.IsValidation(err))
		})
	}
}

func TestDetectFormat(t *testing.T) {
	f, err := DetectFormat("Stock.XLSX", nil)
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	f, err = DetectFormat("", []byte("PK\x03\x04rest"))
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	f, err = DetectFormat("", []byte("name,price"))
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
}

func TestParseXLSX_PrefersInventorySheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]string{"notes"}))
	_, err := f.NewSheet("Inventory")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Inventory", "A1", &[]any{"Category", "Type", "Name", "Price", "Stock"}))
	require.NoError(t, f.SetSheetRow("Inventory", "A2", &[]any{"Analgesics", "Tablet", "Panadol", 500, 10}))
	require.NoError(t, f.SetSheetRow("Inventory", "A4", &[]any{"Vitamins", "Tablet", "Zinc", 200, 0}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	s, err := Parse("upload.xlsx", buf.Bytes())
	require.NoError(t, err)
	require.Len(t, s.Rows, 2)
	assert.Equal(t, 2, s.Rows[0].Line)
	assert.Equal(t, "500", s.Rows[0].Cells["Price"])
	assert.Equal(t, 4, s.Rows[1].Line)
	assert.Equal(t, "Zinc", s.Rows[1].Cells["Name"])
}

func TestTemplate_RoundTrip(t *testing.T) {
	for _, format := range []Format{FormatCSV, FormatXLSX} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteTemplate(&buf, format))

			s, err := Parse(TemplateFileName(format), buf.Bytes())
			require.NoError(t, err)
			assert.Contains(t, s.Header, "category *")
			assert.Contains(t, s.Header, "variant_name")

			rows, err := core.ParseImportRows(s.Header, s.Rows)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "Amoxicillin", rows[0].Name)

			fields, err := rows[0].Fields()
			require.NoError(t, err)
			assert.Equal(t, 40, fields.Stock)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(".xlsx")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("ods")
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.True(t, strings.HasPrefix(ContentType(FormatCSV), "text/csv"))
	assert.Contains(t, ContentType(FormatXLSX), "spreadsheetml")
}
