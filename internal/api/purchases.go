package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/schoolstock/stockroom/internal/apperr"
	"github.com/schoolstock/stockroom/internal/csvio"
	"github.com/schoolstock/stockroom/internal/model"
	"github.com/schoolstock/stockroom/internal/store"
)

// PurchasesHandler handles purchase endpoints.
type PurchasesHandler struct {
	DB              *sql.DB
	DefaultLocation string
}

type createPurchaseRequest struct {
	model.PurchaseInput
	ConfirmDuplicate bool `json:"confirm_duplicate"`
}

type setStatusRequest struct {
	Status   model.PurchaseStatus `json:"status"`
	Location string               `json:"location"`
}

type setStatusResponse struct {
	Purchase  *model.PurchaseItem `json:"purchase"`
	StockItem *model.StockItem    `json:"stock_item,omitempty"`
}

type presentRequest struct {
	Present bool `json:"present"`
}

type repurchaseRequest struct {
	Quantity int `json:"quantity"`
}

func purchaseFilter(r *http.Request) model.PurchaseFilter {
	return model.PurchaseFilter{
		Status:    model.PurchaseStatus(trimmedQuery(r, "status")),
		CourseTag: trimmedQuery(r, "course"),
		Search:    trimmedQuery(r, "q"),
	}
}

// List handles GET /api/purchases.
func (h *PurchasesHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListPurchases(r.Context(), h.DB, ownerID(r), purchaseFilter(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.PurchaseItem{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/purchases. A purchase named like an existing one
// is rejected as DUPLICATE unless confirm_duplicate is set.
func (h *PurchasesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPurchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := store.CreatePurchase(r.Context(), h.DB, ownerID(r), req.PurchaseInput, req.ConfirmDuplicate)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("purchase created", "user", GetClaims(r.Context()).Username, "item", p.ItemName, "status", p.Status)
	jsonResponse(w, http.StatusCreated, p)
}

// Get handles GET /api/purchases/{id}.
func (h *PurchasesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := store.GetPurchase(r.Context(), h.DB, ownerID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, p)
}

// Update handles PUT /api/purchases/{id}.
func (h *PurchasesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in model.PurchaseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := store.UpdatePurchase(r.Context(), h.DB, ownerID(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, p)
}

// Delete handles DELETE /api/purchases/{id}.
func (h *PurchasesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := store.DeletePurchase(r.Context(), h.DB, ownerID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "purchase deleted"})
}

// SetStatus handles PUT /api/purchases/{id}/status. Crossing into arrived
// or stored also returns the stock item created for the purchase.
func (h *PurchasesHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req setStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Location == "" {
		req.Location = h.DefaultLocation
	}

	p, stock, err := store.SetPurchaseStatus(r.Context(), h.DB, ownerID(r), id, req.Status, req.Location)
	if err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("purchase status changed", "user", claims.Username, "item", p.ItemName, "status", p.Status)
	if stock != nil {
		slog.Info("stock created from purchase", "user", claims.Username, "item", stock.ItemName,
			"quantity", stock.TotalQuantity, "location", stock.Location)
	}
	jsonResponse(w, http.StatusOK, setStatusResponse{Purchase: p, StockItem: stock})
}

// MarkPresent handles PUT /api/purchases/{id}/present.
func (h *PurchasesHandler) MarkPresent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req presentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := store.MarkPurchasePresent(r.Context(), h.DB, ownerID(r), id, req.Present); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := store.GetPurchase(r.Context(), h.DB, ownerID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, p)
}

// Repurchase handles POST /api/purchases/{id}/repurchase.
func (h *PurchasesHandler) Repurchase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req repurchaseRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Quantity < 0 {
		writeError(w, r, apperr.Validation("quantity", "must be greater than 0"))
		return
	}

	p, err := store.Repurchase(r.Context(), h.DB, ownerID(r), id, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, p)
}

// Export handles GET /api/purchases/export.
func (h *PurchasesHandler) Export(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListPurchases(r.Context(), h.DB, ownerID(r), purchaseFilter(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	csvResponse(w, "purchases")
	if err := csvio.Write(w, csvio.PurchaseColumns, items); err != nil {
		slog.Error("writing purchase export", "error", err)
	}
}

// Import handles POST /api/purchases/import with a CSV body. Rows that are
// incomplete or fail validation are skipped.
func (h *PurchasesHandler) Import(w http.ResponseWriter, r *http.Request) {
	inputs, skipped, err := csvio.ParsePurchases(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, apperr.Validation("file", err.Error()))
		return
	}

	res := csvio.Result{Skipped: skipped}
	for _, in := range inputs {
		if _, err := store.CreatePurchase(r.Context(), h.DB, ownerID(r), in, true); err != nil {
			if apperr.Code(err) == apperr.CodeWriteFailed {
				writeError(w, r, err)
				return
			}
			res.Skipped++
			continue
		}
		res.Imported++
	}

	slog.Info("purchases imported", "user", GetClaims(r.Context()).Username, "imported", res.Imported, "skipped", res.Skipped)
	jsonResponse(w, http.StatusOK, res)
}
