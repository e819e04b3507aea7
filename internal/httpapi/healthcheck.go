package httpapi

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"aqi-explorer/internal/utils"
)

type healthchecker struct {
	db       *sql.DB
	demoMode bool
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	DemoMode bool   `json:"demoMode"`
}

// handleHealthz reports ok while the lookup history store answers. Demo mode
// is reported but never makes the server unhealthy.
func (h *healthchecker) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var ok int
	if err := h.db.QueryRowContext(ctx, `SELECT 1`).Scan(&ok); err != nil {
		slog.Error("failed to check database connectivity", "error", err)
		utils.WriteError(w, http.StatusServiceUnavailable, "failed to check database connectivity")
		return
	}
	utils.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "ok", DemoMode: h.demoMode})
}

func registerHealthcheck(mux *http.ServeMux, db *sql.DB, demoMode bool) {
	h := &healthchecker{db: db, demoMode: demoMode}
	mux.HandleFunc("GET /healthz", h.handleHealthz)
}
