package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for upstream calls.
const (
	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeError       = "error"
	OutcomeUnavailable = "unavailable"
)

// Collector bundles the Prometheus metrics of the lookup server.
type Collector struct {
	gatherer prometheus.Gatherer

	Lookups           *prometheus.CounterVec
	LastIndex         *prometheus.GaugeVec
	UpstreamRequests  *prometheus.CounterVec
	UpstreamDurations *prometheus.HistogramVec
	HTTPRequests      *prometheus.CounterVec
	HTTPDurations     *prometheus.HistogramVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil. Registering twice against the same registry returns the
// existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	lookups, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aqi_lookups_total",
		Help: "Completed lookups, labeled by entry point and data source (live or synthetic reason).",
	}, []string{"entry", "source"}), "aqi_lookups_total")
	if err != nil {
		return nil, err
	}

	lastIndex, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aqi_last_index",
		Help: "Air quality index of the most recent lookup, labeled by whether it was synthetic.",
	}, []string{"synthetic"}), "aqi_last_index")
	if err != nil {
		return nil, err
	}

	upstream, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aqi_upstream_requests_total",
		Help: "Calls to the geocoding and air pollution services, labeled by service and outcome.",
	}, []string{"service", "outcome"}), "aqi_upstream_requests_total")
	if err != nil {
		return nil, err
	}

	upstreamDur, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aqi_upstream_request_duration_seconds",
		Help:    "Upstream call latency in seconds.",
		Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"service"}), "aqi_upstream_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	httpReqs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Handled HTTP requests, labeled by method, route pattern and status code.",
	}, []string{"method", "route", "code"}), "http_requests_total")
	if err != nil {
		return nil, err
	}

	httpDur, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"method", "route"}), "http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:          gatherer,
		Lookups:           lookups,
		LastIndex:         lastIndex,
		UpstreamRequests:  upstream,
		UpstreamDurations: upstreamDur,
		HTTPRequests:      httpReqs,
		HTTPDurations:     httpDur,
	}, nil
}

// ObserveUpstream records one call to an upstream service. Safe on a nil
// collector.
func (c *Collector) ObserveUpstream(service, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.UpstreamRequests.WithLabelValues(service, outcome).Inc()
	c.UpstreamDurations.WithLabelValues(service).Observe(d.Seconds())
}

// RecordLookup records one rendered lookup.
func (c *Collector) RecordLookup(entry, source string, index int, synthetic bool) {
	if c == nil {
		return
	}
	c.Lookups.WithLabelValues(entry, source).Inc()
	c.LastIndex.WithLabelValues(strconv.FormatBool(synthetic)).Set(float64(index))
}

// Middleware counts requests by their matched ServeMux pattern so path
// parameters do not explode label cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &codeRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.code)).Inc()
		c.HTTPDurations.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type codeRecorder struct {
	http.ResponseWriter
	code int
}

func (r *codeRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
