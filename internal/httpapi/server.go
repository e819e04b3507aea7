package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"aqi-explorer/internal/config"
	"aqi-explorer/internal/observability"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewServer wraps mux with metrics, tracing and request logging. Metrics sit
// closest to the mux so the matched route pattern is visible to them.
func NewServer(cfg config.Config, mux *http.ServeMux, metrics *observability.Collector, logger *slog.Logger) *http.Server {
	var h http.Handler = mux
	h = metrics.Middleware(h)
	h = otelhttp.NewHandler(h, "http.server",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	h = requestLogger(logger, h)

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.UpstreamTimeout*3 + 5*time.Second,
	}
}
