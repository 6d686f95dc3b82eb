package api

import (
	"database/sql"
	"net/http"

	"github.com/schoolstock/stockroom/internal/store"
)

// DashboardHandler handles the dashboard and global search.
type DashboardHandler struct {
	DB           *sql.DB
	LowThreshold int
}

// Dashboard handles GET /api/dashboard.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := store.GetDashboard(r.Context(), h.DB, ownerID(r), h.LowThreshold)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, d)
}

// Search handles GET /api/search?q=term.
func (h *DashboardHandler) Search(w http.ResponseWriter, r *http.Request) {
	res, err := store.Search(r.Context(), h.DB, ownerID(r), trimmedQuery(r, "q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}
