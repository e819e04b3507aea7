package httpapi

import (
	"database/sql"
	"net/http"
	"os"

	"aqi-explorer/internal/observability"
)

// NewMux returns the shared routes: health, metrics and static assets.
// Feature modules register their own routes on the returned mux.
func NewMux(db *sql.DB, staticDir string, demoMode bool, metrics *observability.Collector) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db, demoMode)
	mux.Handle("GET /metrics", metrics.Handler())
	if staticDir != "" {
		if fi, err := os.Stat(staticDir); err == nil && fi.IsDir() {
			mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
		}
	}
	return mux
}
