package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Joshypeace/PharmaStore/internal/logging"
)

// DefaultHistoryLimit caps ItemHistory when the caller passes no limit.
const DefaultHistoryLimit = 100

// Options configures a Service.
type Options struct {
	// Duplicates is the import policy used when a batch does not set one.
	Duplicates DuplicatePolicy

	// Observer receives write counters. Nil disables them.
	Observer Observer

	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Service implements the inventory operations on top of a Store.
// It is safe for concurrent use.
type Service struct {
	store      Store
	duplicates DuplicatePolicy
	observer   Observer
	now        func() time.Time
}

// NewService creates a Service over store.
func NewService(store Store, opts Options) *Service {
	s := &Service{
		store:      store,
		duplicates: opts.Duplicates,
		observer:   opts.Observer,
		now:        opts.Now,
	}
	if s.duplicates == "" {
		s.duplicates = DuplicatesAllow
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// ResolveCategory returns the category named name, creating it when absent.
// A concurrent creator winning the insert is tolerated by re-reading once.
func (s *Service) ResolveCategory(ctx context.Context, name string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, invalid("category", name, "category is required")
	}

	cat, err := s.store.CategoryByName(ctx, name)
	if err == nil {
		return cat, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Category{}, storageErr("get category", err)
	}

	cat, err = s.store.CreateCategory(ctx, name)
	if err == nil {
		logging.FromContext(ctx).Info("category created", "category_id", cat.ID, "name", cat.Name)
		return cat, nil
	}
	if !errors.Is(err, ErrDuplicate) {
		return Category{}, storageErr("create category", err)
	}

	cat, err = s.store.CategoryByName(ctx, name)
	if err != nil {
		return Category{}, &StorageError{
			Op:  "resolve category",
			Err: fmt.Errorf("category %q missing after duplicate insert: %w", name, err),
		}
	}
	return cat, nil
}

// ListCategories returns all categories with their item counts.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, storageErr("list categories", err)
	}
	return cats, nil
}

// UpsertItem creates an item when existingID is nil, otherwise replaces the
// caller-editable fields of item *existingID. Status is always derived.
// The item write and its history entry commit together.
func (s *Service) UpsertItem(ctx context.Context, existingID *int64, fields ItemFields, actor Actor) (Item, error) {
	return s.upsert(ctx, existingID, fields, actor, "")
}

func (s *Service) upsert(ctx context.Context, existingID *int64, fields ItemFields, actor Actor, batchID string) (Item, error) {
	fields = fields.Normalize()
	if err := fields.Validate(); err != nil {
		return Item{}, err
	}

	if existingID != nil {
		if _, err := s.store.GetItem(ctx, *existingID, false); err != nil {
			return Item{}, itemErr("get item", *existingID, err)
		}
	}

	// Category creation happens outside the item transaction so a lost
	// insert race does not abort it.
	cat, err := s.ResolveCategory(ctx, fields.Category)
	if err != nil {
		return Item{}, err
	}

	var saved Item
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		if existingID == nil {
			next := Item{LowStockThreshold: DefaultLowStockThreshold, CreatedBy: actor.ID}
			applyFields(&next, fields, cat)

			created, err := s.store.InsertItem(ctx, next)
			if err != nil {
				return storageErr("insert item", err)
			}
			created.Category = cat.Name
			if err := s.appendHistory(ctx, created.ID, actor, ActionCreate, nil, &created, batchID); err != nil {
				return err
			}
			saved = created
			return nil
		}

		current, err := s.store.GetItem(ctx, *existingID, true)
		if err != nil {
			return itemErr("lock item", *existingID, err)
		}
		next := current
		applyFields(&next, fields, cat)

		saved, err = s.replace(ctx, current, next, actor, batchID)
		return err
	})
	if err != nil {
		return Item{}, err
	}

	action := ActionUpdate
	if existingID == nil {
		action = ActionCreate
	}
	s.observer.ItemWritten(action)
	logging.FromContext(ctx).Debug("item saved",
		"item_id", saved.ID, "action", action, "status", saved.Status, "actor_id", actor.ID)
	return saved, nil
}

// applyFields copies caller fields onto it and recomputes status against
// its current threshold.
func applyFields(it *Item, f ItemFields, cat Category) {
	it.CategoryID = cat.ID
	it.Category = cat.Name
	it.Type = f.Type
	it.Name = f.Name
	it.VariantName = f.VariantName
	it.Price = f.Price
	it.Stock = f.Stock
	it.ExpiryDate = f.ExpiryDate
	it.Status = DeriveStatus(it.Stock, it.LowStockThreshold)
}

// replace writes next over current and records the change. Must run in a tx.
func (s *Service) replace(ctx context.Context, current, next Item, actor Actor, batchID string) (Item, error) {
	updated, err := s.store.UpdateItem(ctx, next)
	if err != nil {
		return Item{}, itemErr("update item", next.ID, err)
	}
	updated.Category = next.Category
	if err := s.appendHistory(ctx, updated.ID, actor, ActionUpdate, &current, &updated, batchID); err != nil {
		return Item{}, err
	}
	return updated, nil
}

// DeleteItem removes an item and records its final state in history.
func (s *Service) DeleteItem(ctx context.Context, id int64, actor Actor) (Item, error) {
	var deleted Item
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.store.GetItem(ctx, id, true)
		if err != nil {
			return itemErr("lock item", id, err)
		}
		if err := s.store.DeleteItem(ctx, id); err != nil {
			return itemErr("delete item", id, err)
		}
		if err := s.appendHistory(ctx, id, actor, ActionDelete, &current, nil, ""); err != nil {
			return err
		}
		deleted = current
		return nil
	})
	if err != nil {
		return Item{}, err
	}

	s.observer.ItemWritten(ActionDelete)
	logging.FromContext(ctx).Info("item deleted", "item_id", id, "name", deleted.Name, "actor_id", actor.ID, "ip", IPAddressFromContext(ctx))
	return deleted, nil
}

// SetThreshold changes an item's low-stock threshold and re-derives its status.
func (s *Service) SetThreshold(ctx context.Context, id int64, threshold int, actor Actor) (Item, error) {
	if threshold < 0 {
		return Item{}, invalid("low_stock_threshold", fmt.Sprint(threshold), "threshold must not be negative")
	}

	var saved Item
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.store.GetItem(ctx, id, true)
		if err != nil {
			return itemErr("lock item", id, err)
		}
		next := current
		next.LowStockThreshold = threshold
		next.Status = DeriveStatus(next.Stock, threshold)

		saved, err = s.replace(ctx, current, next, actor, "")
		return err
	})
	if err != nil {
		return Item{}, err
	}

	s.observer.ItemWritten(ActionUpdate)
	return saved, nil
}

// GetItem returns a single item.
func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	it, err := s.store.GetItem(ctx, id, false)
	if err != nil {
		return Item{}, itemErr("get item", id, err)
	}
	return it, nil
}

// ListItems returns items matching f, ordered by name.
func (s *Service) ListItems(ctx context.Context, f ItemFilter) ([]Item, error) {
	if f.Status != "" {
		st, ok := ParseStatus(string(f.Status))
		if !ok {
			return nil, invalid("status", string(f.Status), "status must be one of %q, %q or %q",
				StatusInStock, StatusLowStock, StatusOutOfStock)
		}
		f.Status = st
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, invalid("limit", fmt.Sprint(f.Limit), "limit and offset must not be negative")
	}
	f.Query = strings.TrimSpace(f.Query)
	f.Category = strings.TrimSpace(f.Category)

	items, err := s.store.ListItems(ctx, f)
	if err != nil {
		return nil, storageErr("list items", err)
	}
	return items, nil
}

// HasInventory reports whether at least one item exists.
func (s *Service) HasInventory(ctx context.Context) (bool, error) {
	n, err := s.store.CountItems(ctx)
	if err != nil {
		return false, storageErr("count items", err)
	}
	return n > 0, nil
}

// ItemHistory returns the audit trail of an item, newest first. Deleted
// items keep their history.
func (s *Service) ItemHistory(ctx context.Context, id int64, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	entries, err := s.store.ItemHistory(ctx, id, limit)
	if err != nil {
		return nil, storageErr("item history", err)
	}
	return entries, nil
}

func (s *Service) appendHistory(ctx context.Context, itemID int64, actor Actor, action HistoryAction, before, after *Item, batchID string) error {
	oldValue, err := snapshot(before)
	if err != nil {
		return storageErr("encode history", err)
	}
	newValue, err := snapshot(after)
	if err != nil {
		return storageErr("encode history", err)
	}

	_, err = s.store.AppendHistory(ctx, HistoryEntry{
		ItemID:    itemID,
		UserID:    actor.ID,
		Action:    action,
		OldValue:  oldValue,
		NewValue:  newValue,
		BatchID:   batchID,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return storageErr("append history", err)
	}
	return nil
}

// snapshot encodes it as JSON, or null for a nil item.
func snapshot(it *Item) (json.RawMessage, error) {
	if it == nil {
		return json.RawMessage("null"), nil
	}
	b, err := json.Marshal(it)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func itemErr(op string, id int64, err error) error {
	if errors.Is(err, ErrNotFound) {
		return &NotFoundError{Entity: "inventory item", ID: id}
	}
	return storageErr(op, err)
}
