package core

import (
	"context"
	"time"
)

// TxRunner executes fn atomically. Store calls made with the ctx passed to
// fn join the transaction; a non-nil return rolls everything back.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CategoryStore persists categories.
type CategoryStore interface {
	// CategoryByName returns ErrNotFound when no category has that exact name.
	CategoryByName(ctx context.Context, name string) (Category, error)
	// CreateCategory returns ErrDuplicate when the name is already taken.
	CreateCategory(ctx context.Context, name string) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// ItemStore persists inventory items. Returned items carry their category name.
type ItemStore interface {
	// GetItem returns ErrNotFound for unknown ids. forUpdate locks the row
	// until the surrounding transaction ends.
	GetItem(ctx context.Context, id int64, forUpdate bool) (Item, error)
	// FindItem matches category, name and variant case-insensitively.
	FindItem(ctx context.Context, category, name, variant string) (Item, error)
	ListItems(ctx context.Context, f ItemFilter) ([]Item, error)
	CountItems(ctx context.Context) (int64, error)
	InsertItem(ctx context.Context, it Item) (Item, error)
	UpdateItem(ctx context.Context, it Item) (Item, error)
	DeleteItem(ctx context.Context, id int64) error
}

// HistoryStore persists the audit trail.
type HistoryStore interface {
	AppendHistory(ctx context.Context, e HistoryEntry) (HistoryEntry, error)
	// ItemHistory returns entries newest first.
	ItemHistory(ctx context.Context, itemID int64, limit int) ([]HistoryEntry, error)
}

// SaleStore persists completed sales.
type SaleStore interface {
	InsertSale(ctx context.Context, s Sale) (Sale, error)
}

// Store is everything Service needs from persistence.
type Store interface {
	TxRunner
	CategoryStore
	ItemStore
	HistoryStore
	SaleStore
}

// Observer receives counters about completed work. Implementations must be
// safe for concurrent use.
type Observer interface {
	ItemWritten(action HistoryAction)
	ImportFinished(imported, failed int, elapsed time.Duration)
	SaleRecorded(lines int)
}

type nopObserver struct{}

func (nopObserver) ItemWritten(HistoryAction)              {}
func (nopObserver) ImportFinished(int, int, time.Duration) {}
func (nopObserver) SaleRecorded(int)                       {}
