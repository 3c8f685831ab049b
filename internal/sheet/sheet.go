// Package sheet reads inventory spreadsheets (CSV or Excel) into header-keyed
// rows and writes the blank import template.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Joshypeace/PharmaStore/internal/core"
)

// Format is a supported spreadsheet encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// PreferredSheet is read from workbooks that contain it; otherwise the
// first sheet is used.
const PreferredSheet = "Inventory"

var (
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
	zipMagic = []byte("PK\x03\x04")
)

// Sheet is a parsed spreadsheet. Row lines are 1-based and count the header.
type Sheet struct {
	Format Format
	Header []string
	Rows   []core.RawRow
}

// ParseFormat maps a name such as "xlsx" or ".csv" to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "csv", "":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fileError("unsupported file type %q", s)
	}
}

// DetectFormat picks the format from the file extension, falling back to
// sniffing the zip signature of xlsx files.
func DetectFormat(fileName string, data []byte) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case "":
		if bytes.HasPrefix(data, zipMagic) {
			return FormatXLSX, nil
		}
		return FormatCSV, nil
	default:
		return "", fileError("unsupported file type %q", ext)
	}
}

// Parse decodes data according to the file's format.
func Parse(fileName string, data []byte) (*Sheet, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fileError("empty file")
	}
	format, err := DetectFormat(fileName, data)
	if err != nil {
		return nil, err
	}
	if format == FormatXLSX {
		return ParseXLSX(bytes.NewReader(data))
	}
	return ParseCSV(bytes.NewReader(data))
}

// ParseCSV reads comma or semicolon separated data. A UTF-8 BOM is dropped
// and invalid UTF-8 is replaced so downstream text is always valid.
func ParseCSV(r io.Reader) (*Sheet, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fileError("invalid csv: %v", err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)
	text := strings.ToValidUTF8(string(raw), "?")

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.Comma = sniffDelimiter(text)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fileError("empty file")
	}
	if err != nil {
		return nil, fileError("invalid csv: %v", err)
	}

	out := &Sheet{Format: FormatCSV, Header: trimAll(header)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fileError("invalid csv: %v", err)
		}
		line, _ := reader.FieldPos(0)
		if row, ok := keyed(out.Header, record, line); ok {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// ParseXLSX reads the PreferredSheet, or the first sheet, of a workbook.
func ParseXLSX(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fileError("invalid xlsx: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fileError("invalid xlsx: workbook has no sheets")
	}
	name := sheets[0]
	for _, s := range sheets {
		if strings.EqualFold(s, PreferredSheet) {
			name = s
			break
		}
	}

	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fileError("invalid xlsx: %v", err)
	}
	if len(rows) == 0 {
		return nil, fileError("empty file")
	}

	out := &Sheet{Format: FormatXLSX, Header: trimAll(rows[0])}
	for i, record := range rows[1:] {
		if row, ok := keyed(out.Header, record, i+2); ok {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// keyed pairs record cells with header names. Blank records are dropped.
// When a header repeats, its first column wins.
func keyed(header, record []string, line int) (core.RawRow, bool) {
	cells := make(map[string]string, len(header))
	blank := true
	for i, v := range record {
		if i >= len(header) || header[i] == "" {
			continue
		}
		if _, dup := cells[header[i]]; dup {
			continue
		}
		v = strings.TrimSpace(v)
		if v != "" {
			blank = false
		}
		cells[header[i]] = v
	}
	if blank {
		return core.RawRow{}, false
	}
	return core.RawRow{Line: line, Cells: cells}, true
}

// sniffDelimiter prefers ';' when the header line has semicolons but no
// commas, as produced by spreadsheet exports in comma-decimal locales.
func sniffDelimiter(text string) rune {
	first, _, _ := strings.Cut(text, "\n")
	if strings.Contains(first, ";") && !strings.Contains(first, ",") {
		return ';'
	}
	return ','
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

func fileError(format string, args ...any) error {
	return &core.ValidationError{Field: "file", Message: fmt.Sprintf(format, args...)}
}

// IsFileError reports whether err came from spreadsheet decoding.
func IsFileError(err error) bool {
	var ve *core.ValidationError
	return errors.As(err, &ve) && ve.Field == "file"
}
