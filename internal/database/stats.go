package database

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/Joshypeace/PharmaStore/internal/core"
)

// ExpiryWindowDays is how far ahead "expiring soon" looks.
const ExpiryWindowDays = 30

const statsListLimit = 5

// InventoryStats summarises current stock for the dashboard.
type InventoryStats struct {
	TotalItems    int64           `json:"totalItems"`
	LowStock      int64           `json:"lowStock"`
	OutOfStock    int64           `json:"outOfStock"`
	ExpiringSoon  int64           `json:"expiringSoon"`
	LowStockItems []LowStockItem  `json:"lowStockItems"`
	ByCategory    []CategoryCount `json:"inventoryByCategory"`
}

type LowStockItem struct {
	ID       int64       `json:"id"`
	Item     string      `json:"item"`
	Category string      `json:"category"`
	Stock    int         `json:"stock"`
	Status   core.Status `json:"status"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// DashboardStats adds sales figures to InventoryStats.
type DashboardStats struct {
	InventoryStats
	TodaySales     decimal.Decimal `json:"todaySales"`
	YesterdaySales decimal.Decimal `json:"yesterdaySales"`
	WeeklySales    []DaySales      `json:"weeklySales"`
	RecentSales    []RecentSale    `json:"recentSales"`
}

// DaySales is the sales total of one calendar day. Day is the weekday name.
type DaySales struct {
	Day   string          `json:"day"`
	Date  time.Time       `json:"date"`
	Total decimal.Decimal `json:"total"`
}

type RecentSale struct {
	SaleID   int64           `json:"sale_id"`
	Item     string          `json:"item"`
	Quantity int             `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
	SoldAt   time.Time       `json:"time"`
}

// InventoryStats runs the stock aggregations.
func (s *Store) InventoryStats(ctx context.Context) (InventoryStats, error) {
	st := InventoryStats{LowStockItems: []LowStockItem{}, ByCategory: []CategoryCount{}}

	row, err := s.queryRow(ctx, squirrel.Expr(
		`SELECT count(*),
		        count(*) FILTER (WHERE status = $1),
		        count(*) FILTER (WHERE status = $2),
		        count(*) FILTER (WHERE expiry_date BETWEEN current_date AND current_date + $3::int)
		   FROM inventory_items`,
		string(core.StatusLowStock), string(core.StatusOutOfStock), ExpiryWindowDays))
	if err != nil {
		return st, err
	}
	if err := row.Scan(&st.TotalItems, &st.LowStock, &st.OutOfStock, &st.ExpiringSoon); err != nil {
		return st, mapError(err)
	}

	rows, err := s.query(ctx, psql.
		Select("i.id", "i.name", "c.name", "i.stock", "i.status").
		From("inventory_items i").
		Join("categories c ON c.id = i.category_id").
		Where(squirrel.Eq{"i.status": string(core.StatusLowStock)}).
		OrderBy("i.stock", "i.name").
		Limit(statsListLimit))
	if err != nil {
		return st, err
	}
	for rows.Next() {
		var (
			it     LowStockItem
			status string
		)
		if err := rows.Scan(&it.ID, &it.Item, &it.Category, &it.Stock, &status); err != nil {
			rows.Close()
			return st, mapError(err)
		}
		it.Status = core.Status(status)
		st.LowStockItems = append(st.LowStockItems, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return st, mapError(err)
	}

	cats, err := s.ListCategories(ctx)
	if err != nil {
		return st, err
	}
	for _, c := range cats {
		st.ByCategory = append(st.ByCategory, CategoryCount{Category: c.Name, Count: c.ItemCount})
	}
	return st, nil
}

// DashboardStats runs InventoryStats plus the sales aggregations. Days are
// calendar days in the database session time zone.
func (s *Store) DashboardStats(ctx context.Context) (DashboardStats, error) {
	inv, err := s.InventoryStats(ctx)
	if err != nil {
		return DashboardStats{}, err
	}
	st := DashboardStats{InventoryStats: inv, WeeklySales: []DaySales{}, RecentSales: []RecentSale{}}

	row, err := s.queryRow(ctx, squirrel.Expr(
		`SELECT coalesce(sum(total_amount) FILTER (WHERE sale_date::date = current_date), 0),
		        coalesce(sum(total_amount) FILTER (WHERE sale_date::date = current_date - 1), 0)
		   FROM sales
		  WHERE sale_date >= current_date - 1`))
	if err != nil {
		return st, err
	}
	var today, yesterday pgtype.Numeric
	if err := row.Scan(&today, &yesterday); err != nil {
		return st, mapError(err)
	}
	st.TodaySales = fromNumeric(today)
	st.YesterdaySales = fromNumeric(yesterday)

	rows, err := s.query(ctx, squirrel.Expr(
		`SELECT to_char(d, 'FMDay'), d::date, coalesce(sum(s.total_amount), 0)
		   FROM generate_series(current_date - 6, current_date, interval '1 day') AS d
		   LEFT JOIN sales s ON s.sale_date::date = d::date
		  GROUP BY d
		  ORDER BY d`))
	if err != nil {
		return st, err
	}
	for rows.Next() {
		var (
			day   DaySales
			total pgtype.Numeric
		)
		if err := rows.Scan(&day.Day, &day.Date, &total); err != nil {
			rows.Close()
			return st, mapError(err)
		}
		day.Total = fromNumeric(total)
		st.WeeklySales = append(st.WeeklySales, day)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return st, mapError(err)
	}

	rows, err = s.query(ctx, psql.
		Select("s.id", "si.item_name", "si.quantity", "si.total_price", "s.sale_date").
		From("sale_items si").
		Join("sales s ON s.id = si.sale_id").
		OrderBy("s.sale_date DESC", "si.id DESC").
		Limit(statsListLimit))
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rs     RecentSale
			amount pgtype.Numeric
		)
		if err := rows.Scan(&rs.SaleID, &rs.Item, &rs.Quantity, &amount, &rs.SoldAt); err != nil {
			return st, mapError(err)
		}
		rs.Amount = fromNumeric(amount)
		st.RecentSales = append(st.RecentSales, rs)
	}
	return st, mapError(rows.Err())
}
