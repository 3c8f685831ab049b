package core

// validation.go checks item fields before any write and maps import
// headers onto item columns.

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	maxNameLength     = 255
	maxCategoryLength = 100
	priceScale        = 2
)

// maxPrice is the exclusive upper bound of a NUMERIC(12, 2) price.
var maxPrice = decimal.New(1, 10)

// Normalize trims every text field.
func (f ItemFields) Normalize() ItemFields {
	f.Category = strings.TrimSpace(f.Category)
	f.Type = strings.TrimSpace(f.Type)
	f.Name = strings.TrimSpace(f.Name)
	f.VariantName = strings.TrimSpace(f.VariantName)
	return f
}

// Validate returns the first problem found, as a *ValidationError.
// Call it on normalized fields.
func (f ItemFields) Validate() error {
	switch {
	case f.Category == "":
		return invalid("category", f.Category, "category is required")
	case utf8.RuneCountInString(f.Category) > maxCategoryLength:
		return invalid("category", f.Category, "category must be at most %d characters", maxCategoryLength)
	case f.Type == "":
		return invalid("type", f.Type, "type is required")
	case f.Name == "":
		return invalid("name", f.Name, "name is required")
	case utf8.RuneCountInString(f.Name) > maxNameLength:
		return invalid("name", f.Name, "name must be at most %d characters", maxNameLength)
	case utf8.RuneCountInString(f.VariantName) > maxNameLength:
		return invalid("variant_name", f.VariantName, "variant name must be at most %d characters", maxNameLength)
	case f.Price.IsNegative():
		return invalid("price", f.Price.String(), "price must not be negative")
	case !f.Price.Equal(f.Price.Round(priceScale)):
		return invalid("price", f.Price.String(), "price must have at most %d decimal places", priceScale)
	case f.Price.GreaterThanOrEqual(maxPrice):
		return invalid("price", f.Price.String(), "price must be less than %s", maxPrice.String())
	case f.Stock < 0:
		return invalid("stock", fmt.Sprint(f.Stock), "stock must not be negative")
	}
	return nil
}

// ImportColumn describes one recognised import column.
type ImportColumn struct {
	Name     string
	Aliases  []string
	Required bool
	Example  string
}

func (c ImportColumn) names() []string {
	return append([]string{c.Name}, c.Aliases...)
}

// ImportColumns is the column set accepted by ParseImportRows, in template order.
var ImportColumns = []ImportColumn{
	{Name: "category", Aliases: []string{"category_name", "group"}, Required: true, Example: "Antibiotics"},
	{Name: "type", Aliases: []string{"item_type", "form"}, Required: true, Example: "Capsule"},
	{Name: "name", Aliases: []string{"item_name", "product", "product_name", "drug", "drug_name"}, Required: true, Example: "Amoxicillin"},
	{Name: "variant_name", Aliases: []string{"variant", "variantname", "strength"}, Example: "500mg"},
	{Name: "price", Aliases: []string{"unit_price", "selling_price", "cost"}, Required: true, Example: "1200.00"},
	{Name: "stock", Aliases: []string{"quantity", "qty", "units", "stock_level"}, Required: true, Example: "40"},
	{Name: "expiry_date", Aliases: []string{"expiry", "expirydate", "expires", "expiration_date", "exp_date"}, Example: "2027-06-30"},
}

// NormalizeHeader folds a header cell to snake_case for alias lookup.
// "Variant Name *" and "variant-name" both become "variant_name".
func NormalizeHeader(h string) string {
	h = strings.ToLower(CleanCell(strings.TrimPrefix(h, "\ufeff")))
	h = strings.TrimRight(h, " *")
	var b strings.Builder
	lastUnderscore := false
	for _, r := range h {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case r == ' ' || r == '-' || r == '_' || r == '.':
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// ResolveHeaders maps each canonical column name to the header that
// supplies it. Unknown headers are ignored. Missing required columns
// produce a single *ValidationError listing all of them.
func ResolveHeaders(header []string) (map[string]string, error) {
	byKey := make(map[string]string, len(header))
	for _, h := range header {
		key := NormalizeHeader(h)
		if key == "" {
			continue
		}
		if _, dup := byKey[key]; !dup {
			byKey[key] = h
		}
	}

	resolved := make(map[string]string, len(ImportColumns))
	var missing []string
	for _, col := range ImportColumns {
		for _, cand := range col.names() {
			if src, ok := byKey[cand]; ok {
				resolved[col.Name] = src
				break
			}
		}
		if _, ok := resolved[col.Name]; !ok && col.Required {
			missing = append(missing, col.Name)
		}
	}

	if len(missing) > 0 {
		return nil, &ValidationError{
			Field:   "header",
			Value:   strings.Join(header, ","),
			Message: "missing required columns: " + strings.Join(missing, ", "),
		}
	}
	return resolved, nil
}
