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

// BorrowsHandler handles borrow and return endpoints.
type BorrowsHandler struct {
	DB *sql.DB
}

func borrowFilter(r *http.Request) (model.BorrowFilter, error) {
	f := model.BorrowFilter{
		Status:      model.BorrowStatus(trimmedQuery(r, "status")),
		Search:      trimmedQuery(r, "q"),
		OverdueOnly: queryBool(r, "overdue"),
	}
	if f.Status != "" && f.Status != model.BorrowBorrowed && f.Status != model.BorrowReturned {
		return f, apperr.Validation("status", "must be borrowed or returned")
	}
	return f, nil
}

// List handles GET /api/borrows.
func (h *BorrowsHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := borrowFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	records, err := store.ListBorrows(r.Context(), h.DB, ownerID(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []model.BorrowRecord{}
	}
	jsonResponse(w, http.StatusOK, records)
}

// Create handles POST /api/borrows.
func (h *BorrowsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.BorrowInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	b, err := store.Borrow(r.Context(), h.DB, ownerID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("item borrowed", "user", GetClaims(r.Context()).Username, "item", b.ItemName,
		"borrower", b.BorrowerName, "quantity", b.Quantity)
	jsonResponse(w, http.StatusCreated, b)
}

// Get handles GET /api/borrows/{id}.
func (h *BorrowsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	b, err := store.GetBorrow(r.Context(), h.DB, ownerID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, b)
}

// Return handles POST /api/borrows/{id}/return.
func (h *BorrowsHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	b, err := store.ReturnBorrow(r.Context(), h.DB, ownerID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("item returned", "user", GetClaims(r.Context()).Username, "item", b.ItemName,
		"borrower", b.BorrowerName, "quantity", b.Quantity)
	jsonResponse(w, http.StatusOK, b)
}

// Export handles GET /api/borrows/export.
func (h *BorrowsHandler) Export(w http.ResponseWriter, r *http.Request) {
	f, err := borrowFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	records, err := store.ListBorrows(r.Context(), h.DB, ownerID(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	csvResponse(w, "borrows")
	if err := csvio.Write(w, csvio.BorrowColumns, records); err != nil {
		slog.Error("writing borrow export", "error", err)
	}
}
