package database

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Joshypeace/PharmaStore/internal/core"
)

// CategoryByName matches the exact name.
func (s *Store) CategoryByName(ctx context.Context, name string) (core.Category, error) {
	row, err := s.queryRow(ctx, psql.
		Select("id", "name").
		From("categories").
		Where(squirrel.Eq{"name": name}))
	if err != nil {
		return core.Category{}, err
	}

	var c core.Category
	if err := row.Scan(&c.ID, &c.Name); err != nil {
		return core.Category{}, mapError(err)
	}
	return c, nil
}

func (s *Store) CreateCategory(ctx context.Context, name string) (core.Category, error) {
	row, err := s.queryRow(ctx, psql.
		Insert("categories").
		Columns("name").
		Values(name).
		Suffix("RETURNING id, name"))
	if err != nil {
		return core.Category{}, err
	}

	var c core.Category
	if err := row.Scan(&c.ID, &c.Name); err != nil {
		return core.Category{}, mapError(err)
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.query(ctx, psql.
		Select("c.id", "c.name", "count(i.id)").
		From("categories c").
		LeftJoin("inventory_items i ON i.category_id = c.id").
		GroupBy("c.id", "c.name").
		OrderBy("c.name"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cats := []core.Category{}
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ItemCount); err != nil {
			return nil, mapError(err)
		}
		cats = append(cats, c)
	}
	return cats, mapError(rows.Err())
}

var itemColumns = []string{
	"i.id", "i.category_id", "c.name", "i.type", "i.name", "i.variant_name",
	"i.price", "i.stock", "i.status", "i.low_stock_threshold", "i.expiry_date", "i.created_by",
}

func selectItems() squirrel.SelectBuilder {
	return psql.
		Select(itemColumns...).
		From("inventory_items i").
		Join("categories c ON c.id = i.category_id")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (core.Item, error) {
	var (
		it        core.Item
		price     pgtype.Numeric
		status    string
		expiry    pgtype.Date
		createdBy pgtype.Int8
	)
	err := row.Scan(
		&it.ID, &it.CategoryID, &it.Category, &it.Type, &it.Name, &it.VariantName,
		&price, &it.Stock, &status, &it.LowStockThreshold, &expiry, &createdBy,
	)
	if err != nil {
		return core.Item{}, mapError(err)
	}
	it.Price = fromNumeric(price)
	it.Status = core.Status(status)
	it.ExpiryDate = fromDate(expiry)
	it.CreatedBy = createdBy.Int64
	return it, nil
}

// GetItem loads one item. With forUpdate the item row stays locked until
// the surrounding transaction ends.
func (s *Store) GetItem(ctx context.Context, id int64, forUpdate bool) (core.Item, error) {
	b := selectItems().Where(squirrel.Eq{"i.id": id})
	if forUpdate {
		b = b.Suffix("FOR UPDATE OF i")
	}
	row, err := s.queryRow(ctx, b)
	if err != nil {
		return core.Item{}, err
	}
	return scanItem(row)
}

// FindItem is the duplicate lookup used by imports.
func (s *Store) FindItem(ctx context.Context, category, name, variant string) (core.Item, error) {
	row, err := s.queryRow(ctx, selectItems().
		Where("lower(c.name) = lower(?)", category).
		Where("lower(i.name) = lower(?)", name).
		Where("lower(i.variant_name) = lower(?)", variant).
		OrderBy("i.id").
		Limit(1))
	if err != nil {
		return core.Item{}, err
	}
	return scanItem(row)
}

func (s *Store) ListItems(ctx context.Context, f core.ItemFilter) ([]core.Item, error) {
	b := selectItems().OrderBy("i.name", "i.id")
	if f.Query != "" {
		p := likePattern(f.Query)
		b = b.Where(squirrel.Or{
			squirrel.ILike{"i.name": p},
			squirrel.ILike{"i.variant_name": p},
			squirrel.ILike{"i.type": p},
		})
	}
	if f.Category != "" {
		b = b.Where("lower(c.name) = lower(?)", f.Category)
	}
	if f.Status != "" {
		b = b.Where(squirrel.Eq{"i.status": string(f.Status)})
	}
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		b = b.Offset(uint64(f.Offset))
	}

	rows, err := s.query(ctx, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []core.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, mapError(rows.Err())
}

func (s *Store) CountItems(ctx context.Context) (int64, error) {
	row, err := s.queryRow(ctx, psql.Select("count(*)").From("inventory_items"))
	if err != nil {
		return 0, err
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func (s *Store) InsertItem(ctx context.Context, it core.Item) (core.Item, error) {
	row, err := s.queryRow(ctx, psql.
		Insert("inventory_items").
		Columns("category_id", "type", "name", "variant_name", "price", "stock",
			"status", "low_stock_threshold", "expiry_date", "created_by").
		Values(it.CategoryID, it.Type, it.Name, it.VariantName, numeric(it.Price), it.Stock,
			string(it.Status), it.LowStockThreshold, date(it.ExpiryDate), optionalID(it.CreatedBy)).
		Suffix("RETURNING id"))
	if err != nil {
		return core.Item{}, err
	}
	if err := row.Scan(&it.ID); err != nil {
		return core.Item{}, mapError(err)
	}
	return it, nil
}

// UpdateItem overwrites every mutable column of it.ID.
func (s *Store) UpdateItem(ctx context.Context, it core.Item) (core.Item, error) {
	n, err := s.exec(ctx, psql.
		Update("inventory_items").
		Set("category_id", it.CategoryID).
		Set("type", it.Type).
		Set("name", it.Name).
		Set("variant_name", it.VariantName).
		Set("price", numeric(it.Price)).
		Set("stock", it.Stock).
		Set("status", string(it.Status)).
		Set("low_stock_threshold", it.LowStockThreshold).
		Set("expiry_date", date(it.ExpiryDate)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": it.ID}))
	if err != nil {
		return core.Item{}, err
	}
	if n == 0 {
		return core.Item{}, fmt.Errorf("update item %d: %w", it.ID, core.ErrNotFound)
	}
	return it, nil
}

func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	n, err := s.exec(ctx, psql.Delete("inventory_items").Where(squirrel.Eq{"id": id}))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("delete item %d: %w", id, core.ErrNotFound)
	}
	return nil
}
