// Package service holds the pipeline observers: lookup history, the MQTT
// reading feed and lookup metrics.
package service

import (
	"context"
	"log/slog"

	"aqi-explorer/internal/modules/airquality/pipeline"
	"aqi-explorer/internal/modules/airquality/repository"
	"aqi-explorer/internal/modules/airquality/types"
	"aqi-explorer/internal/mqtt"
	"aqi-explorer/internal/observability"
)

// LookupFromResult is the history record of res.
func LookupFromResult(res pipeline.Result) types.Lookup {
	return types.Lookup{
		ID:          res.ID,
		Kind:        res.Query.Kind,
		Query:       res.Query.Label(),
		DisplayName: res.Location.DisplayName,
		Coordinates: res.Location.Coordinates,
		Index:       res.Reading.Index,
		Status:      res.Info.Status.String(),
		Synthetic:   res.Source.Synthetic,
		Reason:      string(res.Source.Reason),
		Pollutants:  res.Reading.Pollutants,
		CreatedAt:   res.CreatedAt,
	}
}

type HistoryObserver struct {
	repo repository.LookupRepository
}

func NewHistoryObserver(repo repository.LookupRepository) *HistoryObserver {
	return &HistoryObserver{repo: repo}
}

func (o *HistoryObserver) Name() string { return "history" }

func (o *HistoryObserver) Observe(ctx context.Context, res pipeline.Result) error {
	return o.repo.InsertLookup(ctx, LookupFromResult(res))
}

// ReadingPublisher is implemented by *mqtt.Publisher.
type ReadingPublisher interface {
	IsConnected() bool
	PublishReading(ctx context.Context, r mqtt.Reading) error
}

// FeedObserver publishes every lookup. While the broker is unreachable
// lookups are skipped, not queued.
type FeedObserver struct {
	publisher ReadingPublisher
	logger    *slog.Logger
}

func NewFeedObserver(p ReadingPublisher, logger *slog.Logger) *FeedObserver {
	return &FeedObserver{publisher: p, logger: logger}
}

func (o *FeedObserver) Name() string { return "feed" }

func (o *FeedObserver) Observe(ctx context.Context, res pipeline.Result) error {
	if !o.publisher.IsConnected() {
		o.logger.Debug("mqtt not connected, reading not published", "lookup_id", res.ID)
		return nil
	}
	return o.publisher.PublishReading(ctx, ReadingFromResult(res))
}

// ReadingFromResult is the feed payload of res.
func ReadingFromResult(res pipeline.Result) mqtt.Reading {
	pollutants := make(map[string]float64, len(res.Reading.Pollutants))
	for k, v := range res.Reading.Pollutants {
		pollutants[string(k)] = v
	}
	return mqtt.Reading{
		LookupID:   res.ID,
		Kind:       string(res.Query.Kind),
		Query:      res.Query.Label(),
		Location:   res.Location.DisplayName,
		Lat:        res.Location.Coordinates.Lat,
		Lon:        res.Location.Coordinates.Lon,
		Index:      res.Reading.Index,
		Status:     res.Info.Status.String(),
		Synthetic:  res.Source.Synthetic,
		Reason:     string(res.Source.Reason),
		Pollutants: pollutants,
		Timestamp:  res.CreatedAt,
	}
}

type MetricsObserver struct {
	metrics *observability.Collector
}

func NewMetricsObserver(m *observability.Collector) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) Name() string { return "metrics" }

func (o *MetricsObserver) Observe(_ context.Context, res pipeline.Result) error {
	o.metrics.RecordLookup(string(res.Query.Kind), res.Source.String(), res.Reading.Index, res.Source.Synthetic)
	return nil
}
