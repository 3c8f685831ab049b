package core

// convert.go turns raw spreadsheet cells into typed item fields.
//
// Cells arrive as strings from CSV, Excel or JSON and carry the usual noise:
// currency symbols, thousands separators, Excel formula prefixes and a dozen
// date layouts. Every parser returns a *ValidationError naming the field.

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot bounds how far into the future a two-digit year may
// land before it is moved back a century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "01-02-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "02-Jan-2006", "Jan 2006",
		"20060102",
	}
)

// currencyMarks are stripped from price cells.
var currencyMarks = []string{"$", "€", "£", "₦", "NGN", ","}

// CleanCell removes common spreadsheet artifacts: whitespace, the Excel
// ="..." formula wrapper and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}
	return strings.TrimSpace(strings.Trim(s, `"'`))
}

func cleanNumber(s string) (string, bool) {
	s = CleanCell(s)
	if s == "" {
		return "", false
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	for _, m := range currencyMarks {
		s = strings.ReplaceAll(s, m, "")
	}
	s = strings.TrimSpace(s)
	if negative {
		s = "-" + s
	}
	return s, numericRegex.MatchString(s)
}

// ParsePrice parses a money cell. Empty cells are rejected as required.
func ParsePrice(s string) (decimal.Decimal, error) {
	if CleanCell(s) == "" {
		return decimal.Zero, invalid("price", s, "price is required")
	}
	clean, ok := cleanNumber(s)
	if !ok {
		return decimal.Zero, invalid("price", s, "invalid number %q", s)
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, invalid("price", s, "invalid number %q", s)
	}
	return d, nil
}

// ParseStock parses a unit count. Whole-number decimals such as "12.0",
// which Excel emits for numeric cells, are accepted.
func ParseStock(s string) (int, error) {
	if CleanCell(s) == "" {
		return 0, invalid("stock", s, "stock is required")
	}
	clean, ok := cleanNumber(s)
	if !ok {
		return 0, invalid("stock", s, "invalid number %q", s)
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, invalid("stock", s, "invalid number %q", s)
	}
	if !d.IsInteger() {
		return 0, invalid("stock", s, "stock must be a whole number, got %q", s)
	}
	if !d.Abs().LessThan(decimal.NewFromInt(1 << 31)) {
		return 0, invalid("stock", s, "stock %q is out of range", s)
	}
	return int(d.IntPart()), nil
}

// ParseDate parses an expiry date. Empty input yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = CleanCell(s)
	if s == "" {
		return nil, nil
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := truncateDay(t)
			return &d, nil
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			d := truncateDay(t)
			return &d, nil
		}
	}

	return nil, invalid("expiry_date", s, "invalid date %q", s)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func equalFoldTrim(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
