package core

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// memStore is an in-memory Store. RunInTx snapshots all tables and
// restores them when fn fails.
type memStore struct {
	mu sync.Mutex

	nextCat, nextItem, nextHist, nextSale int64

	cats    map[int64]Category
	items   map[int64]Item
	history []HistoryEntry
	sales   []Sale

	// hook runs before every method; a non-nil error is returned as-is.
	hook func(op string, arg any) error

	calls map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		cats:  make(map[int64]Category),
		items: make(map[int64]Item),
		calls: make(map[string]int),
	}
}

func (m *memStore) enter(op string, arg any) error {
	m.mu.Lock()
	m.calls[op]++
	hook := m.hook
	m.mu.Unlock()
	if hook != nil {
		return hook(op, arg)
	}
	return nil
}

func (m *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := m.enter("RunInTx", nil); err != nil {
		return err
	}

	m.mu.Lock()
	cats := make(map[int64]Category, len(m.cats))
	for k, v := range m.cats {
		cats[k] = v
	}
	items := make(map[int64]Item, len(m.items))
	for k, v := range m.items {
		items[k] = v
	}
	history := append([]HistoryEntry(nil), m.history...)
	sales := append([]Sale(nil), m.sales...)
	counters := [4]int64{m.nextCat, m.nextItem, m.nextHist, m.nextSale}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.cats, m.items, m.history, m.sales = cats, items, history, sales
		m.nextCat, m.nextItem, m.nextHist, m.nextSale = counters[0], counters[1], counters[2], counters[3]
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) CategoryByName(ctx context.Context, name string) (Category, error) {
	if err := m.enter("CategoryByName", name); err != nil {
		return Category{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cats {
		if c.Name == name {
			return c, nil
		}
	}
	return Category{}, ErrNotFound
}

func (m *memStore) CreateCategory(ctx context.Context, name string) (Category, error) {
	if err := m.enter("CreateCategory", name); err != nil {
		return Category{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cats {
		if c.Name == name {
			return Category{}, ErrDuplicate
		}
	}
	m.nextCat++
	c := Category{ID: m.nextCat, Name: name}
	m.cats[c.ID] = c
	return c, nil
}

func (m *memStore) ListCategories(ctx context.Context) ([]Category, error) {
	if err := m.enter("ListCategories", nil); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Category, 0, len(m.cats))
	for _, c := range m.cats {
		for _, it := range m.items {
			if it.CategoryID == c.ID {
				c.ItemCount++
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) withCategory(it Item) Item {
	it.Category = m.cats[it.CategoryID].Name
	return it
}

func (m *memStore) GetItem(ctx context.Context, id int64, forUpdate bool) (Item, error) {
	if err := m.enter("GetItem", id); err != nil {
		return Item{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return m.withCategory(it), nil
}

func (m *memStore) FindItem(ctx context.Context, category, name, variant string) (Item, error) {
	if err := m.enter("FindItem", name); err != nil {
		return Item{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		it = m.withCategory(it)
		if strings.EqualFold(it.Category, category) && strings.EqualFold(it.Name, name) && strings.EqualFold(it.VariantName, variant) {
			return it, nil
		}
	}
	return Item{}, ErrNotFound
}

func (m *memStore) ListItems(ctx context.Context, f ItemFilter) ([]Item, error) {
	if err := m.enter("ListItems", f); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Item
	for _, it := range m.items {
		it = m.withCategory(it)
		if f.Status != "" && it.Status != f.Status {
			continue
		}
		if f.Category != "" && !strings.EqualFold(it.Category, f.Category) {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(it.Name), strings.ToLower(f.Query)) {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) CountItems(ctx context.Context) (int64, error) {
	if err := m.enter("CountItems", nil); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.items)), nil
}

func (m *memStore) InsertItem(ctx context.Context, it Item) (Item, error) {
	if err := m.enter("InsertItem", it); err != nil {
		return Item{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextItem++
	it.ID = m.nextItem
	m.items[it.ID] = it
	return m.withCategory(it), nil
}

func (m *memStore) UpdateItem(ctx context.Context, it Item) (Item, error) {
	if err := m.enter("UpdateItem", it); err != nil {
		return Item{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[it.ID]; !ok {
		return Item{}, ErrNotFound
	}
	m.items[it.ID] = it
	return m.withCategory(it), nil
}

func (m *memStore) DeleteItem(ctx context.Context, id int64) error {
	if err := m.enter("DeleteItem", id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memStore) AppendHistory(ctx context.Context, e HistoryEntry) (HistoryEntry, error) {
	if err := m.enter("AppendHistory", e); err != nil {
		return HistoryEntry{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextHist++
	e.ID = m.nextHist
	m.history = append(m.history, e)
	return e, nil
}

func (m *memStore) ItemHistory(ctx context.Context, itemID int64, limit int) ([]HistoryEntry, error) {
	if err := m.enter("ItemHistory", itemID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []HistoryEntry
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		if m.history[i].ItemID == itemID {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

func (m *memStore) InsertSale(ctx context.Context, s Sale) (Sale, error) {
	if err := m.enter("InsertSale", s); err != nil {
		return Sale{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSale++
	s.ID = m.nextSale
	m.sales = append(m.sales, s)
	return s, nil
}

// writes counts mutating calls.
func (m *memStore) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls["CreateCategory"] + m.calls["InsertItem"] + m.calls["UpdateItem"] +
		m.calls["DeleteItem"] + m.calls["AppendHistory"] + m.calls["InsertSale"]
}

func (m *memStore) historyFor(itemID int64) []HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []HistoryEntry
	for _, e := range m.history {
		if e.ItemID == itemID {
			out = append(out, e)
		}
	}
	return out
}
