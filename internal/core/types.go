package core

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the derived stock state of an item.
type Status string

const (
	StatusInStock    Status = "In Stock"
	StatusLowStock   Status = "Low Stock"
	StatusOutOfStock Status = "Out of Stock"
)

// DefaultLowStockThreshold applies to newly created items.
const DefaultLowStockThreshold = 5

// Category groups items. Names are unique.
type Category struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ItemCount int64  `json:"item_count"`
}

// Item is a stocked product variant.
type Item struct {
	ID                int64           `json:"id"`
	CategoryID        int64           `json:"category_id"`
	Category          string          `json:"category"`
	Type              string          `json:"type"`
	Name              string          `json:"name"`
	VariantName       string          `json:"variant_name"`
	Price             decimal.Decimal `json:"price"`
	Stock             int             `json:"stock"`
	Status            Status          `json:"status"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	ExpiryDate        *time.Time      `json:"expiry_date"`
	CreatedBy         int64           `json:"created_by"`
}

// ItemFields are the caller-supplied attributes of an item.
type ItemFields struct {
	Category    string
	Type        string
	Name        string
	VariantName string
	Price       decimal.Decimal
	Stock       int
	ExpiryDate  *time.Time
}

// ItemFilter narrows ListItems. Zero values match everything.
type ItemFilter struct {
	Query    string
	Category string
	Status   Status
	Limit    int
	Offset   int
}

// HistoryAction names the kind of change a history entry records.
type HistoryAction string

const (
	ActionCreate HistoryAction = "Create"
	ActionUpdate HistoryAction = "Update"
	ActionDelete HistoryAction = "Delete"
)

// HistoryEntry is one append-only audit record of an item change.
// OldValue and NewValue are JSON snapshots of the full item; one of them
// is null for creates and deletes.
type HistoryEntry struct {
	ID        int64           `json:"id"`
	ItemID    int64           `json:"item_id"`
	UserID    int64           `json:"user_id"`
	Action    HistoryAction   `json:"action"`
	OldValue  json.RawMessage `json:"old_value"`
	NewValue  json.RawMessage `json:"new_value"`
	BatchID   string          `json:"batch_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Actor is the authenticated user a change is attributed to.
type Actor struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Sale is a recorded checkout.
type Sale struct {
	ID        int64           `json:"id"`
	Customer  string          `json:"customer"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total_amount"`
	Lines     []SaleLine      `json:"items"`
	SoldAt    time.Time       `json:"sale_date"`
	CreatedBy int64           `json:"created_by"`
}

// SaleLine is one item of a sale.
type SaleLine struct {
	ItemID    int64           `json:"item_id"`
	ItemName  string          `json:"item_name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total_price"`
}

// SaleRequest is the input to RecordSale.
type SaleRequest struct {
	Customer string
	Discount decimal.Decimal
	Lines    []SaleLineRequest
}

// SaleLineRequest asks for Quantity units of ItemID.
type SaleLineRequest struct {
	ItemID   int64
	Quantity int
}

// User is a staff account. PasswordHash is never serialised.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor returns the identity changes by u are attributed to.
func (u User) Actor() Actor {
	return Actor{ID: u.ID, Email: u.Email, Role: u.Role}
}
