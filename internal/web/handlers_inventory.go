package web

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Joshypeace/PharmaStore/internal/core"
)

// itemRequest is the body of create and update calls. Price accepts a JSON
// number or a decimal string.
type itemRequest struct {
	Category    string           `json:"category" validate:"required,max=100"`
	Type        string           `json:"type" validate:"required"`
	Name        string           `json:"name" validate:"required,max=255"`
	VariantName string           `json:"variant_name" validate:"max=255"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Stock       *int             `json:"stock" validate:"required,gte=0"`
	ExpiryDate  string           `json:"expiry_date"`
}

func (req itemRequest) fields() (core.ItemFields, error) {
	expiry, err := core.ParseDate(req.ExpiryDate)
	if err != nil {
		return core.ItemFields{}, err
	}
	return core.ItemFields{
		Category:    req.Category,
		Type:        req.Type,
		Name:        req.Name,
		VariantName: req.VariantName,
		Price:       *req.Price,
		Stock:       *req.Stock,
		ExpiryDate:  expiry,
	}, nil
}

func (s *Server) readItem(w http.ResponseWriter, r *http.Request) (core.ItemFields, error) {
	var req itemRequest
	if err := s.decodeJSON(w, r, maxJSONBody, &req); err != nil {
		return core.ItemFields{}, err
	}
	return req.fields()
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.ItemFilter{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		Status:   core.Status(q.Get("status")),
	}
	var err error
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		s.respondError(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		s.respondError(w, r, err)
		return
	}

	items, err := s.deps.Inventory.ListItems(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if items == nil {
		items = []core.Item{}
	}
	writeJSON(w, r, http.StatusOK, items)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	fields, err := s.readItem(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	item, err := s.deps.Inventory.UpsertItem(r.Context(), nil, fields, actorFrom(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, item)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	item, err := s.deps.Inventory.GetItem(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, item)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	fields, err := s.readItem(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	item, err := s.deps.Inventory.UpsertItem(r.Context(), &id, fields, actorFrom(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if _, err := s.deps.Inventory.DeleteItem(r.Context(), id, actorFrom(r)); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type thresholdRequest struct {
	Threshold *int `json:"low_stock_threshold" validate:"required,gte=0"`
}

func (s *Server) handleSetThreshold(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req thresholdRequest
	if err := s.decodeJSON(w, r, maxJSONBody, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	item, err := s.deps.Inventory.SetThreshold(r.Context(), id, *req.Threshold, actorFrom(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, item)
}

func (s *Server) handleItemHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	entries, err := s.deps.Inventory.ItemHistory(r.Context(), id, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.HistoryEntry{}
	}
	writeJSON(w, r, http.StatusOK, entries)
}

func (s *Server) handleInventoryExists(w http.ResponseWriter, r *http.Request) {
	ok, err := s.deps.Inventory.HasInventory(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"hasInventory": ok})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Inventory.ListCategories(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	writeJSON(w, r, http.StatusOK, cats)
}

func (s *Server) handleInventoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Reports.InventoryStats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}
