package web

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Joshypeace/PharmaStore/internal/core"
)

type saleRequest struct {
	CustomerName string            `json:"customer_name" validate:"max=255"`
	Discount     decimal.Decimal   `json:"discount"`
	Items        []saleLineRequest `json:"items" validate:"required,min=1,dive"`
}

type saleLineRequest struct {
	ItemID   int64 `json:"item_id" validate:"required,gt=0"`
	Quantity int   `json:"quantity" validate:"required,gt=0"`
}

func (s *Server) handleRecordSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := s.decodeJSON(w, r, maxJSONBody, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	lines := make([]core.SaleLineRequest, len(req.Items))
	for i, l := range req.Items {
		lines[i] = core.SaleLineRequest{ItemID: l.ItemID, Quantity: l.Quantity}
	}

	sale, err := s.deps.Inventory.RecordSale(r.Context(), core.SaleRequest{
		Customer: req.CustomerName,
		Discount: req.Discount,
		Lines:    lines,
	}, actorFrom(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, sale)
}
