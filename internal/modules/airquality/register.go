// Package airquality wires the air-quality lookup feature: gateways,
// pipeline, observers and HTTP routes.
package airquality

import (
	"database/sql"
	"log/slog"
	"net/http"

	"aqi-explorer/internal/config"
	"aqi-explorer/internal/modules/airquality/controller"
	"aqi-explorer/internal/modules/airquality/geocoding"
	"aqi-explorer/internal/modules/airquality/mapview"
	"aqi-explorer/internal/modules/airquality/owm"
	"aqi-explorer/internal/modules/airquality/pipeline"
	"aqi-explorer/internal/modules/airquality/provider"
	"aqi-explorer/internal/modules/airquality/repository"
	"aqi-explorer/internal/modules/airquality/service"
	"aqi-explorer/internal/modules/airquality/synthetic"
	"aqi-explorer/internal/modules/airquality/types"
	"aqi-explorer/internal/observability"
	"aqi-explorer/internal/readiness"
)

// Deps are the shared services the feature plugs into. Feed may be nil when
// MQTT is disabled.
type Deps struct {
	DB      *sql.DB
	Metrics *observability.Collector
	Feed    service.ReadingPublisher
	Logger  *slog.Logger
}

// RegisterFeature builds the lookup pipeline and registers its routes on mux.
func RegisterFeature(mux *http.ServeMux, cfg config.Config, deps Deps) *pipeline.Pipeline {
	logger := deps.Logger.With("module", "airquality")

	client := owm.NewClient(owm.Options{
		BaseURL:  cfg.OWMBaseURL,
		APIKey:   cfg.OWMAPIKey,
		Timeout:  cfg.UpstreamTimeout,
		Recorder: deps.Metrics,
		Logger:   logger,
	})
	defaultLocation := types.NewResolvedLocation(
		types.Coordinates{Lat: cfg.DefaultLat, Lon: cfg.DefaultLon},
		cfg.DefaultName,
	)

	repo := repository.NewRepository(deps.DB)
	observers := []pipeline.Observer{
		service.NewHistoryObserver(repo),
		service.NewMetricsObserver(deps.Metrics),
	}
	if deps.Feed != nil {
		observers = append(observers, service.NewFeedObserver(deps.Feed, logger))
	}

	p := pipeline.New(
		geocoding.New(client, cfg.OWMCountry),
		provider.New(client),
		synthetic.New(nil),
		pipeline.Options{
			DefaultLocation: defaultLocation,
			NeighborPoints:  cfg.NeighborPoints,
			Logger:          logger,
		},
		observers...,
	)

	ctrl := controller.NewAirQualityController(p, repo, controller.Options{
		Map:      MapConfig(cfg),
		DemoMode: cfg.DemoMode(),
		Logger:   logger,
	})
	ctrl.RegisterRoutes(mux)
	return p
}

// MapConfig is the presenter configuration for cfg.
func MapConfig(cfg config.Config) mapview.Config {
	tiles := mapview.DefaultTiles
	tiles.MaxZoom = cfg.MapMaxZoom
	tiles.MinZoom = cfg.MapMinZoom
	return mapview.Config{
		Default: types.NewResolvedLocation(
			types.Coordinates{Lat: cfg.DefaultLat, Lon: cfg.DefaultLon},
			cfg.DefaultName,
		),
		DefaultZoom: cfg.MapDefaultZoom,
		ResultZoom:  cfg.MapResultZoom,
		Tiles:       tiles,
		Readiness: readiness.Options{
			Interval: cfg.MapReadyInterval,
			Attempts: cfg.MapReadyAttempts,
		},
	}
}
