package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/schoolstock/stockroom/internal/model"
	"github.com/schoolstock/stockroom/internal/report"
	"github.com/schoolstock/stockroom/internal/store"
)

// StockTakeHandler handles stock-take sessions and their reports.
type StockTakeHandler struct {
	DB *sql.DB
	// Archive, when set, receives the rendered report of every submitted
	// stock-take.
	Archive report.Archive
}

type countRequest struct {
	StockItemID     uuid.UUID `json:"stock_item_id"`
	CountedQuantity int       `json:"counted_quantity"`
}

type stockTakeResponse struct {
	*model.StockTake
	Checked int `json:"checked"`
	Total   int `json:"total"`
}

func newStockTakeResponse(st *model.StockTake) stockTakeResponse {
	if st.Lines == nil {
		st.Lines = []model.StockTakeLine{}
	}
	checked, total := st.Progress()
	return stockTakeResponse{StockTake: st, Checked: checked, Total: total}
}

// Start handles POST /api/stock-take/start.
func (h *StockTakeHandler) Start(w http.ResponseWriter, r *http.Request) {
	st, err := store.StartStockTake(r.Context(), h.DB, ownerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("stock-take started", "user", GetClaims(r.Context()).Username, "items", len(st.Lines))
	jsonResponse(w, http.StatusCreated, newStockTakeResponse(st))
}

// Active handles GET /api/stock-take/active.
func (h *StockTakeHandler) Active(w http.ResponseWriter, r *http.Request) {
	st, err := store.GetActiveStockTake(r.Context(), h.DB, ownerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, newStockTakeResponse(st))
}

// Count handles PUT /api/stock-take/count.
func (h *StockTakeHandler) Count(w http.ResponseWriter, r *http.Request) {
	var req countRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	line, err := store.RecordCount(r.Context(), h.DB, ownerID(r), req.StockItemID, req.CountedQuantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, line)
}

// Submit handles POST /api/stock-take/submit. When no checked line differs
// from its snapshot nothing is written and the session stays open.
func (h *StockTakeHandler) Submit(w http.ResponseWriter, r *http.Request) {
	rep, err := store.SubmitStockTake(r.Context(), h.DB, ownerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rep == nil {
		jsonResponse(w, http.StatusOK, map[string]string{"message": "no changes"})
		return
	}

	user := GetClaims(r.Context()).Username
	slog.Info("stock-take submitted", "user", user, "changed", len(rep.Lines))

	if h.Archive != nil {
		if err := h.archive(r, rep); err != nil {
			// The stock changes are committed; the document can be rendered again on demand.
			slog.Warn("archiving stock-take report failed", "user", user, "report", rep.ID, "error", err)
		}
	}
	jsonResponse(w, http.StatusCreated, rep)
}

func (h *StockTakeHandler) archive(r *http.Request, rep *model.StockTakeReport) error {
	doc, err := report.RenderBytes(rep)
	if err != nil {
		return err
	}
	key := report.Key(rep)
	if err := h.Archive.Put(r.Context(), key, doc); err != nil {
		return err
	}
	if err := store.SetReportArchiveKey(r.Context(), h.DB, ownerID(r), rep.ID, key); err != nil {
		return err
	}
	rep.ArchiveKey = key
	return nil
}

// Discard handles POST /api/stock-take/discard.
func (h *StockTakeHandler) Discard(w http.ResponseWriter, r *http.Request) {
	if err := store.DiscardStockTake(r.Context(), h.DB, ownerID(r)); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("stock-take discarded", "user", GetClaims(r.Context()).Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "stock-take discarded"})
}

// ListReports handles GET /api/stock-take/reports.
func (h *StockTakeHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := store.ListStockTakeReports(r.Context(), h.DB, ownerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if reports == nil {
		reports = []model.StockTakeReport{}
	}
	jsonResponse(w, http.StatusOK, reports)
}

// GetReport handles GET /api/stock-take/reports/{id}.
func (h *StockTakeHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	rep, err := store.GetStockTakeReport(r.Context(), h.DB, ownerID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, rep)
}

// ReportDocument handles GET /api/stock-take/reports/{id}/document. The
// archived copy is served when present, otherwise the report is rendered.
func (h *StockTakeHandler) ReportDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	rep, err := store.GetStockTakeReport(r.Context(), h.DB, ownerID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var doc []byte
	if h.Archive != nil && rep.ArchiveKey != "" {
		doc, err = h.Archive.Get(r.Context(), rep.ArchiveKey)
		if err != nil {
			slog.Warn("reading archived report failed", "report", rep.ID, "key", rep.ArchiveKey, "error", err)
		}
	}
	if doc == nil {
		if doc, err = report.RenderBytes(rep); err != nil {
			writeError(w, r, err)
			return
		}
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Write(doc)
}
