package database

import (
	"context"

	"github.com/Joshypeace/PharmaStore/internal/core"
)

// InsertSale stores the sale header and all of its lines. Callers run it in
// the transaction that adjusted stock.
func (s *Store) InsertSale(ctx context.Context, sale core.Sale) (core.Sale, error) {
	row, err := s.queryRow(ctx, psql.
		Insert("sales").
		Columns("customer_name", "subtotal", "discount", "total_amount", "sale_date", "created_by").
		Values(sale.Customer, numeric(sale.Subtotal), numeric(sale.Discount), numeric(sale.Total),
			sale.SoldAt, optionalID(sale.CreatedBy)).
		Suffix("RETURNING id"))
	if err != nil {
		return core.Sale{}, err
	}
	if err := row.Scan(&sale.ID); err != nil {
		return core.Sale{}, mapError(err)
	}

	if len(sale.Lines) == 0 {
		return sale, nil
	}

	b := psql.
		Insert("sale_items").
		Columns("sale_id", "item_id", "item_name", "quantity", "unit_price", "total_price")
	for _, l := range sale.Lines {
		b = b.Values(sale.ID, l.ItemID, l.ItemName, l.Quantity, numeric(l.UnitPrice), numeric(l.Total))
	}
	if _, err := s.exec(ctx, b); err != nil {
		return core.Sale{}, err
	}
	return sale, nil
}
