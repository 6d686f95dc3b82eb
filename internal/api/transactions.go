package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/schoolstock/stockroom/internal/apperr"
	"github.com/schoolstock/stockroom/internal/csvio"
	"github.com/schoolstock/stockroom/internal/model"
	"github.com/schoolstock/stockroom/internal/store"
)

// TransactionsHandler handles ledger endpoints.
type TransactionsHandler struct {
	DB *sql.DB
}

type correctRequest struct {
	Reason      string `json:"reason"`
	PerformedBy string `json:"performed_by"`
}

func transactionFilter(r *http.Request) (model.TransactionFilter, error) {
	var f model.TransactionFilter
	if v := trimmedQuery(r, "stock_item_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, apperr.Validation("stock_item_id", "must be a valid id")
		}
		f.StockItemID = id
	}
	f.Type = model.TransactionType(trimmedQuery(r, "type"))
	if f.Type != "" && f.Type != model.TransactionIn && f.Type != model.TransactionOut {
		return f, apperr.Validation("type", "must be in or out")
	}

	var err error
	if f.From, err = queryTime(r, "from", false); err != nil {
		return f, err
	}
	if f.To, err = queryTime(r, "to", true); err != nil {
		return f, err
	}
	return f, nil
}

// List handles GET /api/transactions.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := transactionFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ts, err := store.ListTransactions(r.Context(), h.DB, ownerID(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ts == nil {
		ts = []model.StockTransaction{}
	}
	jsonResponse(w, http.StatusOK, ts)
}

// Get handles GET /api/transactions/{id}.
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	t, err := store.GetTransaction(r.Context(), h.DB, ownerID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, t)
}

// Correct handles POST /api/transactions/{id}/correct by appending an
// offsetting entry.
func (h *TransactionsHandler) Correct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req correctRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	claims := GetClaims(r.Context())
	if req.PerformedBy == "" {
		req.PerformedBy = claims.Username
	}

	t, err := store.CorrectTransaction(r.Context(), h.DB, ownerID(r), id, req.Reason, req.PerformedBy)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("transaction corrected", "user", claims.Username, "item", t.ItemName, "corrects", id)
	jsonResponse(w, http.StatusCreated, t)
}

// Export handles GET /api/transactions/export.
func (h *TransactionsHandler) Export(w http.ResponseWriter, r *http.Request) {
	f, err := transactionFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ts, err := store.ListTransactions(r.Context(), h.DB, ownerID(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	csvResponse(w, "transactions")
	if err := csvio.Write(w, csvio.TransactionColumns, ts); err != nil {
		slog.Error("writing transaction export", "error", err)
	}
}
