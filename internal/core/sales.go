package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Joshypeace/PharmaStore/internal/logging"
)

// RecordSale decrements stock for every line and stores the sale. Item
// rows are locked in id order; the stock changes, their history entries
// and the sale itself commit together.
func (s *Service) RecordSale(ctx context.Context, req SaleRequest, actor Actor) (Sale, error) {
	if len(req.Lines) == 0 {
		return Sale{}, invalid("items", "", "a sale needs at least one item")
	}
	if req.Discount.IsNegative() {
		return Sale{}, invalid("discount", req.Discount.String(), "discount must not be negative")
	}

	// Merge repeated items so each row is locked and checked once.
	qty := make(map[int64]int, len(req.Lines))
	for _, l := range req.Lines {
		if l.Quantity <= 0 {
			return Sale{}, invalid("quantity", fmt.Sprint(l.Quantity), "quantity must be positive")
		}
		qty[l.ItemID] += l.Quantity
	}
	ids := make([]int64, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var saved Sale
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		sale := Sale{
			Customer:  strings.TrimSpace(req.Customer),
			Discount:  req.Discount,
			Subtotal:  decimal.Zero,
			SoldAt:    s.now().UTC(),
			CreatedBy: actor.ID,
		}

		for _, id := range ids {
			current, err := s.store.GetItem(ctx, id, true)
			if err != nil {
				return itemErr("lock item", id, err)
			}
			n := qty[id]
			if current.Stock < n {
				return invalid("quantity", fmt.Sprint(n),
					"insufficient stock for %s: %d available, %d requested", current.Name, current.Stock, n)
			}

			next := current
			next.Stock -= n
			next.Status = DeriveStatus(next.Stock, next.LowStockThreshold)
			if _, err := s.replace(ctx, current, next, actor, ""); err != nil {
				return err
			}

			line := SaleLine{
				ItemID:    id,
				ItemName:  displayName(current),
				Quantity:  n,
				UnitPrice: current.Price,
				Total:     current.Price.Mul(decimal.NewFromInt(int64(n))),
			}
			sale.Subtotal = sale.Subtotal.Add(line.Total)
			sale.Lines = append(sale.Lines, line)
		}

		if sale.Discount.GreaterThan(sale.Subtotal) {
			return invalid("discount", sale.Discount.String(), "discount exceeds subtotal %s", sale.Subtotal.StringFixed(2))
		}
		sale.Total = sale.Subtotal.Sub(sale.Discount)

		var err error
		saved, err = s.store.InsertSale(ctx, sale)
		if err != nil {
			return storageErr("insert sale", err)
		}
		return nil
	})
	if err != nil {
		return Sale{}, err
	}

	s.observer.SaleRecorded(len(saved.Lines))
	logging.FromContext(ctx).Info("sale recorded",
		"sale_id", saved.ID, "lines", len(saved.Lines), "total", saved.Total.StringFixed(2), "actor_id", actor.ID)
	return saved, nil
}

func displayName(it Item) string {
	if it.VariantName == "" {
		return it.Name
	}
	return it.Name + " " + it.VariantName
}
