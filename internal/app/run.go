package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"aqi-explorer/internal/config"
	"aqi-explorer/internal/db"
	"aqi-explorer/internal/httpapi"
	"aqi-explorer/internal/migrate"
	"aqi-explorer/internal/modules/airquality"
	"aqi-explorer/internal/modules/airquality/views"
	"aqi-explorer/internal/mqtt"
	"aqi-explorer/internal/observability"
)

const serviceName = "aqi-explorer"

// Run serves until ctx is cancelled, then shuts down the HTTP server, the
// MQTT feed and tracing in that order.
func Run(ctx context.Context, cfg config.Config, version string, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"staticDir", cfg.StaticDir,
		"demoMode", cfg.DemoMode(),
		"owmBaseURL", cfg.OWMBaseURL,
		"owmCountry", cfg.OWMCountry,
		"upstreamTimeout", cfg.UpstreamTimeout,
		"sqliteDriver", cfg.SQLiteDriver,
		"sqlitePath", cfg.SQLitePath,
		"sqliteMaxOpenConns", cfg.SQLiteMaxOpenConns,
		"mqttEnabled", cfg.MQTTEnabled,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopic", cfg.MQTTTopic,
		"tracingEnabled", cfg.TracingEnabled,
		"tracingExporter", cfg.TracingExporter,
	)
	if cfg.DemoMode() {
		logger.Warn("no OpenWeatherMap API key configured, serving simulated data")
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFrom(cfg, serviceName, version), logger)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	metrics, err := observability.NewCollector(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	dbConn, err := db.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()

	applied, err := migrate.Run(ctx, dbConn, logger)
	if err != nil {
		return err
	}
	logger.Info("database ready", "migrationsApplied", applied)

	if err := views.LoadTemplates(); err != nil {
		return err
	}

	deps := airquality.Deps{DB: dbConn, Metrics: metrics, Logger: logger}
	var publisher *mqtt.Publisher
	if cfg.MQTTEnabled {
		publisher = mqtt.NewPublisher(cfg, logger)
		// Use a short timeout for the initial connect so a missing broker
		// does not block startup.
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err := publisher.Connect(connectCtx)
		connectCancel()
		if err != nil {
			logger.Warn("mqtt connection failed (continuing without reading feed)", "error", err)
		}
		deps.Feed = publisher
	}

	mux := httpapi.NewMux(dbConn, cfg.StaticDir, cfg.DemoMode(), metrics)
	airquality.RegisterFeature(mux, cfg, deps)

	srv := httpapi.NewServer(cfg, mux, metrics, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if publisher != nil {
			publisher.Disconnect()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if publisher != nil {
		logger.Info("mqtt disconnecting")
		publisher.Disconnect()
	}

	return ctx.Err()
}
