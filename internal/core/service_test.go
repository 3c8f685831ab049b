package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var pharmacist = Actor{ID: 7, Email: "pharm@pharmastore.com", Role: "pharmacist"}

func newTestService(store *memStore) *Service {
	fixed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return NewService(store, Options{Now: func() time.Time { return fixed }})
}

func panadol() ItemFields {
	return ItemFields{
		Category: "Analgesics",
		Type:     "Tablet",
		Name:     "Panadol",
		Price:    decimal.NewFromInt(500),
		Stock:    3,
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestUpsertItem_CreateDerivesStatusAndRecordsHistory(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	item, err := svc.UpsertItem(context.Background(), nil, panadol(), pharmacist)
	if err != nil {
		t.Fatalf("UpsertItem() error = %v", err)
	}

	if item.ID == 0 {
		t.Error("expected generated id")
	}
	if item.Status != StatusLowStock {
		t.Errorf("Status = %q, want %q", item.Status, StatusLowStock)
	}
	if item.LowStockThreshold != DefaultLowStockThreshold {
		t.Errorf("LowStockThreshold = %d, want %d", item.LowStockThreshold, DefaultLowStockThreshold)
	}
	if item.Category != "Analgesics" || item.CategoryID == 0 {
		t.Errorf("category = (%d, %q), want resolved Analgesics", item.CategoryID, item.Category)
	}
	if item.CreatedBy != pharmacist.ID {
		t.Errorf("CreatedBy = %d, want %d", item.CreatedBy, pharmacist.ID)
	}

	if len(store.items) != 1 {
		t.Fatalf("stored items = %d, want 1", len(store.items))
	}
	hist := store.historyFor(item.ID)
	if len(hist) != 1 {
		t.Fatalf("history entries = %d, want 1", len(hist))
	}
	e := hist[0]
	if e.Action != ActionCreate {
		t.Errorf("Action = %q, want %q", e.Action, ActionCreate)
	}
	if e.UserID != pharmacist.ID {
		t.Errorf("UserID = %d, want %d", e.UserID, pharmacist.ID)
	}
	if string(e.OldValue) != "null" {
		t.Errorf("OldValue = %s, want null", e.OldValue)
	}
	if string(e.NewValue) != mustJSON(t, item) {
		t.Errorf("NewValue = %s, want %s", e.NewValue, mustJSON(t, item))
	}
}

func TestUpsertItem_UpdateKeepsIDAndSnapshotsBothSides(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	created, err := svc.UpsertItem(ctx, nil, panadol(), pharmacist)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	before, _ := store.GetItem(ctx, created.ID, false)

	fields := panadol()
	fields.Stock = 0
	fields.Price = decimal.RequireFromString("550.25")
	fields.Category = "Pain Relief"

	id := created.ID
	updated, err := svc.UpsertItem(ctx, &id, fields, pharmacist)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.ID != created.ID {
		t.Errorf("ID changed from %d to %d", created.ID, updated.ID)
	}
	if updated.Status != StatusOutOfStock {
		t.Errorf("Status = %q, want %q", updated.Status, StatusOutOfStock)
	}
	if updated.Category != "Pain Relief" {
		t.Errorf("Category = %q, want Pain Relief", updated.Category)
	}
	if !updated.Price.Equal(decimal.RequireFromString("550.25")) {
		t.Errorf("Price = %s, want 550.25", updated.Price)
	}
	if len(store.items) != 1 {
		t.Errorf("stored items = %d, want 1", len(store.items))
	}

	hist := store.historyFor(created.ID)
	if len(hist) != 2 {
		t.Fatalf("history entries = %d, want 2", len(hist))
	}
	e := hist[1]
	if e.Action != ActionUpdate {
		t.Errorf("Action = %q, want %q", e.Action, ActionUpdate)
	}
	if string(e.OldValue) != mustJSON(t, before) {
		t.Errorf("OldValue = %s, want %s", e.OldValue, mustJSON(t, before))
	}
	if string(e.NewValue) != mustJSON(t, updated) {
		t.Errorf("NewValue = %s, want %s", e.NewValue, mustJSON(t, updated))
	}
}

func TestUpsertItem_UpdateUsesExistingThreshold(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	created, err := svc.UpsertItem(ctx, nil, panadol(), pharmacist)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.SetThreshold(ctx, created.ID, 2, pharmacist); err != nil {
		t.Fatalf("SetThreshold: %v", err)
	}

	id := created.ID
	updated, err := svc.UpsertItem(ctx, &id, panadol(), pharmacist)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.LowStockThreshold != 2 {
		t.Errorf("LowStockThreshold = %d, want 2", updated.LowStockThreshold)
	}
	if updated.Status != StatusInStock {
		t.Errorf("Status = %q, want %q (3 units, threshold 2)", updated.Status, StatusInStock)
	}
}

func TestUpsertItem_UnknownIDPerformsNoWrites(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	id := int64(404)
	_, err := svc.UpsertItem(context.Background(), &id, panadol(), pharmacist)

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want *NotFoundError", err)
	}
	if nf.ID != 404 {
		t.Errorf("NotFoundError.ID = %d, want 404", nf.ID)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound() = false")
	}
	if w := store.writes(); w != 0 {
		t.Errorf("writes = %d, want 0", w)
	}
	if len(store.cats) != 0 {
		t.Errorf("categories created = %d, want 0", len(store.cats))
	}
}

func TestUpsertItem_ValidationPerformsNoWrites(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ItemFields)
		field  string
	}{
		{"blank category", func(f *ItemFields) { f.Category = "   " }, "category"},
		{"missing type", func(f *ItemFields) { f.Type = "" }, "type"},
		{"missing name", func(f *ItemFields) { f.Name = "" }, "name"},
		{"negative price", func(f *ItemFields) { f.Price = decimal.NewFromInt(-1) }, "price"},
		{"negative stock", func(f *ItemFields) { f.Stock = -4 }, "stock"},
		{"price below a cent", func(f *ItemFields) { f.Price = decimal.RequireFromString("1.005") }, "price"},
		{"price overflows column", func(f *ItemFields) { f.Price = decimal.RequireFromString("123456789012.50") }, "price"},
		{"price at bound", func(f *ItemFields) { f.Price = decimal.New(1, 10) }, "price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			svc := newTestService(store)
			fields := panadol()
			tt.mutate(&fields)

			_, err := svc.UpsertItem(context.Background(), nil, fields, pharmacist)

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
			if w := store.writes(); w != 0 {
				t.Errorf("writes = %d, want 0", w)
			}
		})
	}
}

func TestUpsertItem_PriceAtColumnLimits(t *testing.T) {
	for _, price := range []string{"1.50", "1.500", "9999999999.99", "0"} {
		store := newMemStore()
		svc := newTestService(store)
		fields := panadol()
		fields.Price = decimal.RequireFromString(price)

		item, err := svc.UpsertItem(context.Background(), nil, fields, pharmacist)
		if err != nil {
			t.Fatalf("UpsertItem(price %s) error = %v", price, err)
		}
		if !item.Price.Equal(fields.Price) {
			t.Errorf("price = %s, want %s", item.Price, price)
		}
	}
}

func TestUpsertItem_HistoryFailureRollsBackItem(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	store.hook = func(op string, _ any) error {
		if op == "AppendHistory" {
			return errors.New("disk full")
		}
		return nil
	}

	_, err := svc.UpsertItem(context.Background(), nil, panadol(), pharmacist)
	if !IsStorage(err) {
		t.Fatalf("error = %v, want *StorageError", err)
	}
	if len(store.items) != 0 {
		t.Errorf("items after rollback = %d, want 0", len(store.items))
	}
	if len(store.history) != 0 {
		t.Errorf("history after rollback = %d, want 0", len(store.history))
	}
}

func TestUpsertItem_TrimsFields(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	fields := panadol()
	fields.Name = "  Panadol Extra "
	fields.Category = " Analgesics"

	item, err := svc.UpsertItem(context.Background(), nil, fields, pharmacist)
	if err != nil {
		t.Fatalf("UpsertItem() error = %v", err)
	}
	if item.Name != "Panadol Extra" || item.Category != "Analgesics" {
		t.Errorf("got (%q, %q), want trimmed values", item.Name, item.Category)
	}
}

func TestResolveCategory_CreatesOnce(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	first, err := svc.ResolveCategory(ctx, "Antibiotics")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := svc.ResolveCategory(ctx, "Antibiotics")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("ids differ: %d vs %d", first.ID, second.ID)
	}
	if store.calls["CreateCategory"] != 1 {
		t.Errorf("CreateCategory calls = %d, want 1", store.calls["CreateCategory"])
	}
}

func TestResolveCategory_LostInsertRaceRefetches(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	// Another writer creates the category between our lookup and our insert.
	lookups := 0
	store.hook = func(op string, arg any) error {
		if op == "CategoryByName" {
			lookups++
			if lookups == 1 {
				store.mu.Lock()
				store.nextCat++
				store.cats[store.nextCat] = Category{ID: store.nextCat, Name: arg.(string)}
				store.mu.Unlock()
				return ErrNotFound
			}
		}
		return nil
	}

	cat, err := svc.ResolveCategory(context.Background(), "Vitamins")
	if err != nil {
		t.Fatalf("ResolveCategory() error = %v", err)
	}
	if cat.ID != 1 || cat.Name != "Vitamins" {
		t.Errorf("got %+v, want the concurrently created category", cat)
	}
	if len(store.cats) != 1 {
		t.Errorf("categories = %d, want 1", len(store.cats))
	}
	if lookups != 2 {
		t.Errorf("lookups = %d, want 2", lookups)
	}
}

func TestResolveCategory_SecondMissIsStorageError(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	store.hook = func(op string, _ any) error {
		switch op {
		case "CategoryByName":
			return ErrNotFound
		case "CreateCategory":
			return ErrDuplicate
		}
		return nil
	}

	_, err := svc.ResolveCategory(context.Background(), "Ghost")
	if !IsStorage(err) {
		t.Fatalf("error = %v, want *StorageError", err)
	}
	if store.calls["CategoryByName"] != 2 {
		t.Errorf("lookups = %d, want exactly one retry", store.calls["CategoryByName"])
	}
}

func TestResolveCategory_Blank(t *testing.T) {
	svc := newTestService(newMemStore())
	_, err := svc.ResolveCategory(context.Background(), " \t")
	if !IsValidation(err) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
}

func TestDeleteItem(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	created, err := svc.UpsertItem(ctx, nil, panadol(), pharmacist)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	deleted, err := svc.DeleteItem(ctx, created.ID, pharmacist)
	if err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	if deleted.ID != created.ID {
		t.Errorf("deleted.ID = %d, want %d", deleted.ID, created.ID)
	}
	if _, err := svc.GetItem(ctx, created.ID); !IsNotFound(err) {
		t.Errorf("GetItem after delete error = %v, want not found", err)
	}

	hist, err := svc.ItemHistory(ctx, created.ID, 0)
	if err != nil {
		t.Fatalf("ItemHistory: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("history entries = %d, want 2", len(hist))
	}
	e := hist[0]
	if e.Action != ActionDelete {
		t.Errorf("newest Action = %q, want %q", e.Action, ActionDelete)
	}
	if string(e.OldValue) != mustJSON(t, created) {
		t.Errorf("OldValue = %s, want %s", e.OldValue, mustJSON(t, created))
	}
	if string(e.NewValue) != "null" {
		t.Errorf("NewValue = %s, want null", e.NewValue)
	}
}

func TestDeleteItem_UnknownIDPerformsNoWrites(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	_, err := svc.DeleteItem(context.Background(), 99, pharmacist)
	if !IsNotFound(err) {
		t.Fatalf("error = %v, want not found", err)
	}
	if w := store.writes(); w != 0 {
		t.Errorf("writes = %d, want 0", w)
	}
}

func TestSetThreshold(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	fields := panadol()
	fields.Stock = 8
	created, err := svc.UpsertItem(ctx, nil, fields, pharmacist)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != StatusInStock {
		t.Fatalf("initial Status = %q, want %q", created.Status, StatusInStock)
	}

	updated, err := svc.SetThreshold(ctx, created.ID, 10, pharmacist)
	if err != nil {
		t.Fatalf("SetThreshold() error = %v", err)
	}
	if updated.Status != StatusLowStock {
		t.Errorf("Status = %q, want %q", updated.Status, StatusLowStock)
	}
	if len(store.historyFor(created.ID)) != 2 {
		t.Errorf("expected an Update history entry")
	}

	if _, err := svc.SetThreshold(ctx, created.ID, -1, pharmacist); !IsValidation(err) {
		t.Errorf("negative threshold error = %v, want validation", err)
	}
	if _, err := svc.SetThreshold(ctx, 999, 3, pharmacist); !IsNotFound(err) {
		t.Errorf("unknown id error = %v, want not found", err)
	}
}

func TestListItems_Filters(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	for _, f := range []ItemFields{
		{Category: "Analgesics", Type: "Tablet", Name: "Panadol", Price: decimal.NewFromInt(500), Stock: 3},
		{Category: "Analgesics", Type: "Tablet", Name: "Ibuprofen", Price: decimal.NewFromInt(300), Stock: 50},
		{Category: "Antibiotics", Type: "Capsule", Name: "Amoxil", Price: decimal.NewFromInt(1200), Stock: 0},
	} {
		if _, err := svc.UpsertItem(ctx, nil, f, pharmacist); err != nil {
			t.Fatalf("seed %s: %v", f.Name, err)
		}
	}

	tests := []struct {
		name   string
		filter ItemFilter
		want   []string
	}{
		{"all", ItemFilter{}, []string{"Amoxil", "Ibuprofen", "Panadol"}},
		{"by category", ItemFilter{Category: "analgesics"}, []string{"Ibuprofen", "Panadol"}},
		{"by status", ItemFilter{Status: "low stock"}, []string{"Panadol"}},
		{"by query", ItemFilter{Query: "amox"}, []string{"Amoxil"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := svc.ListItems(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListItems() error = %v", err)
			}
			if len(items) != len(tt.want) {
				t.Fatalf("got %d items, want %d", len(items), len(tt.want))
			}
			for i, name := range tt.want {
				if items[i].Name != name {
					t.Errorf("items[%d] = %q, want %q", i, items[i].Name, name)
				}
			}
		})
	}

	if _, err := svc.ListItems(ctx, ItemFilter{Status: "Expired"}); !IsValidation(err) {
		t.Errorf("unknown status error = %v, want validation", err)
	}
}

func TestHasInventory(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	has, err := svc.HasInventory(ctx)
	if err != nil || has {
		t.Fatalf("HasInventory() = (%v, %v), want (false, nil)", has, err)
	}
	if _, err := svc.UpsertItem(ctx, nil, panadol(), pharmacist); err != nil {
		t.Fatalf("create: %v", err)
	}
	has, err = svc.HasInventory(ctx)
	if err != nil || !has {
		t.Fatalf("HasInventory() = (%v, %v), want (true, nil)", has, err)
	}
}

func TestListCategories_Counts(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.UpsertItem(ctx, nil, panadol(), pharmacist); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	cats, err := svc.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories() error = %v", err)
	}
	if len(cats) != 1 || cats[0].ItemCount != 2 {
		t.Errorf("categories = %+v, want one with 2 items", cats)
	}
}

type countingObserver struct {
	writes   map[HistoryAction]int
	imported int
	failed   int
	sales    int
}

func (o *countingObserver) ItemWritten(a HistoryAction) { o.writes[a]++ }
func (o *countingObserver) ImportFinished(imported, failed int, _ time.Duration) {
	o.imported += imported
	o.failed += failed
}
func (o *countingObserver) SaleRecorded(lines int) { o.sales += lines }

func TestService_NotifiesObserver(t *testing.T) {
	store := newMemStore()
	obs := &countingObserver{writes: map[HistoryAction]int{}}
	svc := NewService(store, Options{Observer: obs})
	ctx := context.Background()

	item, err := svc.UpsertItem(ctx, nil, panadol(), pharmacist)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.DeleteItem(ctx, item.ID, pharmacist); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if obs.writes[ActionCreate] != 1 || obs.writes[ActionDelete] != 1 {
		t.Errorf("writes = %v, want one create and one delete", obs.writes)
	}
}
