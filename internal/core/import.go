package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/Joshypeace/PharmaStore/internal/logging"
)

// DuplicatePolicy decides what an import does with a row naming an item
// that already exists.
type DuplicatePolicy string

const (
	// DuplicatesAllow creates a new item for every row.
	DuplicatesAllow DuplicatePolicy = "allow"
	// DuplicatesReject reports rows matching an existing item, or an
	// earlier row of the same batch, as errors.
	DuplicatesReject DuplicatePolicy = "reject"
)

// ParseDuplicatePolicy parses "allow" or "reject". Empty means allow.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(DuplicatesAllow):
		return DuplicatesAllow, nil
	case string(DuplicatesReject):
		return DuplicatesReject, nil
	default:
		return "", invalid("duplicates", s, "duplicate policy must be %q or %q", DuplicatesAllow, DuplicatesReject)
	}
}

// ImportRow is one uncoerced import record.
type ImportRow struct {
	Line        int    `json:"line,omitempty"`
	Category    string `json:"category"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	VariantName string `json:"variant_name"`
	Price       string `json:"price"`
	Stock       string `json:"stock"`
	ExpiryDate  string `json:"expiry_date"`
}

// Fields coerces the row into ItemFields.
func (r ImportRow) Fields() (ItemFields, error) {
	price, err := ParsePrice(r.Price)
	if err != nil {
		return ItemFields{}, err
	}
	stock, err := ParseStock(r.Stock)
	if err != nil {
		return ItemFields{}, err
	}
	expiry, err := ParseDate(r.ExpiryDate)
	if err != nil {
		return ItemFields{}, err
	}
	f := ItemFields{
		Category:    r.Category,
		Type:        r.Type,
		Name:        r.Name,
		VariantName: r.VariantName,
		Price:       price,
		Stock:       stock,
		ExpiryDate:  expiry,
	}.Normalize()
	return f, f.Validate()
}

func (r ImportRow) blank() bool {
	return strings.TrimSpace(r.Category+r.Type+r.Name+r.VariantName+r.Price+r.Stock+r.ExpiryDate) == ""
}

// ImportError describes one rejected row.
type ImportError struct {
	Index   int       `json:"index"`
	Line    int       `json:"line,omitempty"`
	Row     ImportRow `json:"row"`
	Message string    `json:"message"`
	Code    string    `json:"code"`
}

// ImportResult reports a finished batch. Every input row is in exactly one
// of Imported or Errors.
type ImportResult struct {
	BatchID  string        `json:"batch_id"`
	Imported []Item        `json:"imported"`
	Errors   []ImportError `json:"errors"`
}

// ImportOptions tune a single batch.
type ImportOptions struct {
	// Duplicates overrides the service default when set.
	Duplicates DuplicatePolicy
}

// ImportBatch creates one item per row. Rows are independent: a failing row
// is reported in the result and never undoes earlier rows. Only an empty
// batch or an invalid policy fails the whole call.
func (s *Service) ImportBatch(ctx context.Context, rows []ImportRow, actor Actor, opts ImportOptions) (ImportResult, error) {
	if len(rows) == 0 {
		return ImportResult{}, invalid("items", "", "no items to import")
	}

	policy := s.duplicates
	if opts.Duplicates != "" {
		p, err := ParseDuplicatePolicy(string(opts.Duplicates))
		if err != nil {
			return ImportResult{}, err
		}
		policy = p
	}

	start := s.now()
	result := ImportResult{
		BatchID:  uuid.NewString(),
		Imported: make([]Item, 0, len(rows)),
		Errors:   []ImportError{},
	}
	log := logging.WithFields(ctx, "batch_id", result.BatchID, "actor_id", actor.ID, "ip", IPAddressFromContext(ctx))
	log.Info("import started", "rows", len(rows), "duplicates", policy)

	seen := make(map[string]int)
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(rows); j++ {
				result.Errors = append(result.Errors, rowError(j, rows[j], err))
			}
			log.Warn("import interrupted", "processed", i, "error", err)
			break
		}

		item, err := s.importRow(ctx, row, actor, policy, seen, i, result.BatchID)
		if err != nil {
			if IsStorage(err) {
				log.Error("import row failed", "index", i, "line", row.Line, "error", err)
			}
			result.Errors = append(result.Errors, rowError(i, row, err))
			continue
		}
		result.Imported = append(result.Imported, item)
	}

	s.observer.ImportFinished(len(result.Imported), len(result.Errors), s.now().Sub(start))
	log.Info("import finished", "imported", len(result.Imported), "failed", len(result.Errors))
	return result, nil
}

func (s *Service) importRow(ctx context.Context, row ImportRow, actor Actor, policy DuplicatePolicy, seen map[string]int, index int, batchID string) (Item, error) {
	fields, err := row.Fields()
	if err != nil {
		return Item{}, err
	}

	if policy != DuplicatesReject {
		return s.upsert(ctx, nil, fields, actor, batchID)
	}

	key := strings.ToLower(fields.Category + "\x00" + fields.Name + "\x00" + fields.VariantName)
	if prev, ok := seen[key]; ok {
		return Item{}, invalid("name", fields.Name, "duplicate of row %d in this import", prev)
	}
	existing, err := s.store.FindItem(ctx, fields.Category, fields.Name, fields.VariantName)
	switch {
	case err == nil:
		return Item{}, invalid("name", fields.Name, "item already exists with id %d", existing.ID)
	case !IsNotFound(err):
		return Item{}, storageErr("find item", err)
	}

	item, err := s.upsert(ctx, nil, fields, actor, batchID)
	if err != nil {
		return Item{}, err
	}
	seen[key] = index
	return item, nil
}

func rowError(index int, row ImportRow, err error) ImportError {
	msg := MapError(err)
	text := msg.Message
	if IsValidation(err) || IsNotFound(err) {
		text = err.Error()
	}
	return ImportError{Index: index, Line: row.Line, Row: row, Message: text, Code: msg.Code}
}

// RawRow is a spreadsheet row keyed by its original header text.
type RawRow struct {
	Line  int
	Cells map[string]string
}

// ParseImportRows maps header-keyed rows onto ImportRows. Headers are
// matched through ImportColumns aliases; a missing required column fails
// the whole parse. Entirely blank rows are dropped.
func ParseImportRows(header []string, raw []RawRow) ([]ImportRow, error) {
	cols, err := ResolveHeaders(header)
	if err != nil {
		return nil, err
	}

	cell := func(r RawRow, name string) string {
		src, ok := cols[name]
		if !ok {
			return ""
		}
		return CleanCell(r.Cells[src])
	}

	rows := make([]ImportRow, 0, len(raw))
	for _, r := range raw {
		row := ImportRow{
			Line:        r.Line,
			Category:    cell(r, "category"),
			Type:        cell(r, "type"),
			Name:        cell(r, "name"),
			VariantName: cell(r, "variant_name"),
			Price:       cell(r, "price"),
			Stock:       cell(r, "stock"),
			ExpiryDate:  cell(r, "expiry_date"),
		}
		if row.blank() {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// RecordsToRaw converts decoded JSON objects into rows keyed by canonical
// column name. Keys are matched per record through ImportColumns aliases and
// unknown keys are ignored. The header always lists every column, so a
// record missing a key fails on its own row instead of the whole batch.
func RecordsToRaw(records []map[string]any) ([]string, []RawRow) {
	header := make([]string, 0, len(ImportColumns))
	for _, col := range ImportColumns {
		header = append(header, col.Name)
	}

	raw := make([]RawRow, 0, len(records))
	for i, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		byKey := make(map[string]any, len(rec))
		for _, k := range keys {
			nk := NormalizeHeader(k)
			if nk == "" {
				continue
			}
			if _, dup := byKey[nk]; !dup {
				byKey[nk] = rec[k]
			}
		}

		cells := make(map[string]string, len(ImportColumns))
		for _, col := range ImportColumns {
			for _, cand := range col.names() {
				if v, ok := byKey[cand]; ok {
					cells[col.Name] = stringify(v)
					break
				}
			}
		}
		raw = append(raw, RawRow{Line: i + 1, Cells: cells})
	}
	return header, raw
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return s
}
