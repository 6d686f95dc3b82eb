package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/schoolstock/stockroom/internal/apperr"
	"github.com/schoolstock/stockroom/internal/csvio"
	"github.com/schoolstock/stockroom/internal/imaging"
	"github.com/schoolstock/stockroom/internal/model"
	"github.com/schoolstock/stockroom/internal/store"
)

// StockHandler handles stock item endpoints.
type StockHandler struct {
	DB              *sql.DB
	DefaultLocation string
	LowThreshold    int
}

func (h *StockHandler) filter(r *http.Request) model.StockFilter {
	return model.StockFilter{
		CourseTag:    trimmedQuery(r, "course"),
		Location:     trimmedQuery(r, "location"),
		Level:        model.StockLevel(trimmedQuery(r, "level")),
		LowThreshold: h.LowThreshold,
		Search:       trimmedQuery(r, "q"),
	}
}

// List handles GET /api/stock.
func (h *StockHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListStockItems(r.Context(), h.DB, ownerID(r), h.filter(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.StockItem{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/stock.
func (h *StockHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.StockInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if in.Location == "" {
		in.Location = h.DefaultLocation
	}

	s, err := store.CreateStockItem(r.Context(), h.DB, ownerID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("stock item created", "user", GetClaims(r.Context()).Username, "item", s.ItemName, "total", s.TotalQuantity)
	jsonResponse(w, http.StatusCreated, s)
}

// Get handles GET /api/stock/{id}.
func (h *StockHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	s, err := store.GetStockItem(r.Context(), h.DB, ownerID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, s)
}

// Update handles PUT /api/stock/{id}.
func (h *StockHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in model.StockUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	s, err := store.UpdateStockItem(r.Context(), h.DB, ownerID(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, s)
}

// Delete handles DELETE /api/stock/{id}.
func (h *StockHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := store.DeleteStockItem(r.Context(), h.DB, ownerID(r), id); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("stock item deleted", "user", GetClaims(r.Context()).Username, "id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "stock item deleted"})
}

// MarkPresent handles PUT /api/stock/{id}/present.
func (h *StockHandler) MarkPresent(w http.ResponseWriter, r *http.Request) {
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

	if err := store.MarkStockPresent(r.Context(), h.DB, ownerID(r), id, req.Present); err != nil {
		writeError(w, r, err)
		return
	}

	s, err := store.GetStockItem(r.Context(), h.DB, ownerID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, s)
}

// ApplyTransaction handles POST /api/stock/{id}/transactions. When
// performed_by is omitted the caller's username is recorded.
func (h *StockHandler) ApplyTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in model.TransactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	claims := GetClaims(r.Context())
	if in.PerformedBy == "" {
		in.PerformedBy = claims.Username
	}

	t, err := store.ApplyTransaction(r.Context(), h.DB, ownerID(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("stock movement", "user", claims.Username, "item", t.ItemName, "type", t.Type, "quantity", t.Quantity)
	jsonResponse(w, http.StatusCreated, t)
}

// ListTransactions handles GET /api/stock/{id}/transactions.
func (h *StockHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := store.GetStockItem(r.Context(), h.DB, ownerID(r), id); err != nil {
		writeError(w, r, err)
		return
	}

	ts, err := store.ListTransactions(r.Context(), h.DB, ownerID(r), model.TransactionFilter{StockItemID: id})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ts == nil {
		ts = []model.StockTransaction{}
	}
	jsonResponse(w, http.StatusOK, ts)
}

// UploadImage handles PUT /api/stock/{id}/image with a multipart "image"
// file. The photo is normalized to a bounded JPEG before it is stored.
func (h *StockHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		writeError(w, r, apperr.Validation("image", "file too large or invalid multipart form"))
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, apperr.Validation("image", "image file required"))
		return
	}
	defer file.Close()

	photo, err := imaging.Prepare(file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := store.SetStockImage(r.Context(), h.DB, ownerID(r), id, photo.Data, imaging.MIME); err != nil {
		writeError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"message": "image uploaded",
		"width":   photo.Width,
		"height":  photo.Height,
	})
}

// GetImage handles GET /api/stock/{id}/image.
func (h *StockHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	data, mime, err := store.GetStockImage(r.Context(), h.DB, ownerID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// Export handles GET /api/stock/export.
func (h *StockHandler) Export(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListStockItems(r.Context(), h.DB, ownerID(r), h.filter(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	csvResponse(w, "stock")
	if err := csvio.Write(w, csvio.StockColumns, items); err != nil {
		slog.Error("writing stock export", "error", err)
	}
}

// Import handles POST /api/stock/import with a CSV body.
func (h *StockHandler) Import(w http.ResponseWriter, r *http.Request) {
	inputs, skipped, err := csvio.ParseStock(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, apperr.Validation("file", err.Error()))
		return
	}

	res := csvio.Result{Skipped: skipped}
	for _, in := range inputs {
		if in.Location == "" {
			in.Location = h.DefaultLocation
		}
		if _, err := store.CreateStockItem(r.Context(), h.DB, ownerID(r), in); err != nil {
			if apperr.Code(err) == apperr.CodeWriteFailed {
				writeError(w, r, err)
				return
			}
			res.Skipped++
			continue
		}
		res.Imported++
	}

	slog.Info("stock imported", "user", GetClaims(r.Context()).Username, "imported", res.Imported, "skipped", res.Skipped)
	jsonResponse(w, http.StatusOK, res)
}
