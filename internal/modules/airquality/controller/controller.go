package controller

import (
	"context"
	"log/slog"
	"net/http"

	"aqi-explorer/internal/modules/airquality/mapview"
	"aqi-explorer/internal/modules/airquality/pipeline"
	"aqi-explorer/internal/modules/airquality/types"
)

// Resolver runs one lookup. *pipeline.Pipeline implements it.
type Resolver interface {
	Resolve(ctx context.Context, q types.LocationQuery) (pipeline.Result, error)
}

// LookupHistory lists stored lookups, newest first.
type LookupHistory interface {
	GetRecentLookups(ctx context.Context, limit int) ([]types.Lookup, error)
	CountLookups(ctx context.Context) (int, error)
}

type AirQualityController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type Options struct {
	Map      mapview.Config
	DemoMode bool
	Logger   *slog.Logger
}

type airQualityControllerImpl struct {
	resolver Resolver
	history  LookupHistory
	mapCfg   mapview.Config
	demoMode bool
	logger   *slog.Logger
}

func NewAirQualityController(resolver Resolver, history LookupHistory, opts Options) AirQualityController {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &airQualityControllerImpl{
		resolver: resolver,
		history:  history,
		mapCfg:   opts.Map,
		demoMode: opts.DemoMode,
		logger:   opts.Logger,
	}
}

func (c *airQualityControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", c.handleIndex)

	mux.HandleFunc("GET /lookup/postal", c.handleLookup(postalQuery))
	mux.HandleFunc("GET /lookup/place", c.handleLookup(placeQuery))
	mux.HandleFunc("GET /lookup/coordinates", c.handleLookup(coordinatesQuery))
	mux.HandleFunc("GET /partials/lookups", c.handleLookupsPartial)

	mux.HandleFunc("GET /api/v1/airquality", c.handleAirQuality)
	mux.HandleFunc("GET /api/v1/lookups", c.handleLookups)
}
