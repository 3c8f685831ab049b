package sheet

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Joshypeace/PharmaStore/internal/core"
)

// TemplateFileName returns the download name for a template.
func TemplateFileName(f Format) string {
	return "inventory_import_template." + string(f)
}

// ContentType returns the MIME type for f.
func ContentType(f Format) string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

func templateHeader() []string {
	header := make([]string, len(core.ImportColumns))
	for i, col := range core.ImportColumns {
		header[i] = col.Name
		if col.Required {
			header[i] += " *"
		}
	}
	return header
}

func templateExample() []string {
	row := make([]string, len(core.ImportColumns))
	for i, col := range core.ImportColumns {
		row[i] = col.Example
	}
	return row
}

// WriteTemplate writes an import template with one example row.
func WriteTemplate(w io.Writer, f Format) error {
	if f == FormatXLSX {
		return writeXLSXTemplate(w)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(templateHeader()); err != nil {
		return err
	}
	if err := cw.Write(templateExample()); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSXTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", PreferredSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"2E7D32"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	requiredStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"C62828"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})
	if err != nil {
		return fmt.Errorf("required style: %w", err)
	}

	header := templateHeader()
	example := templateExample()
	for i, col := range core.ImportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(PreferredSheet, cell, header[i]); err != nil {
			return err
		}
		style := headerStyle
		if col.Required {
			style = requiredStyle
		}
		if err := f.SetCellStyle(PreferredSheet, cell, cell, style); err != nil {
			return err
		}

		exampleCell, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(PreferredSheet, exampleCell, example[i]); err != nil {
			return err
		}

		colName, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(PreferredSheet, colName, colName, 20); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet("Instructions"); err != nil {
		return fmt.Errorf("instructions sheet: %w", err)
	}
	notes := []string{
		"Inventory Import Instructions",
		"",
		"Columns marked * are required.",
		"Categories that do not exist yet are created automatically.",
		"Status is computed from stock; any status column is ignored.",
		"Dates: YYYY-MM-DD is preferred. MM/DD/YYYY and Jan 2, 2006 are also accepted.",
		"Rows that fail are reported individually; the other rows are still imported.",
	}
	for i, line := range notes {
		if err := f.SetCellValue("Instructions", fmt.Sprintf("A%d", i+1), line); err != nil {
			return err
		}
	}
	_ = f.SetColWidth("Instructions", "A", "A", 80)

	return f.Write(w)
}
