// Package pipeline turns one location query into a rendered air quality
// result, substituting synthetic data whenever an upstream stage fails.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"aqi-explorer/internal/modules/airquality/classify"
	"aqi-explorer/internal/modules/airquality/geocoding"
	"aqi-explorer/internal/modules/airquality/owm"
	"aqi-explorer/internal/modules/airquality/types"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type State string

const (
	Idle         State = "idle"
	Resolving    State = "resolving"
	Fetching     State = "fetching"
	Synthesizing State = "synthesizing"
	Classifying  State = "classifying"
	Rendered     State = "rendered"
)

type Reason string

const (
	ReasonNoCredential  Reason = "no_credential"
	ReasonGeocodeFailed Reason = "geocode_failed"
	ReasonFetchFailed   Reason = "fetch_failed"
)

// Source says where a reading came from. Reason is empty for live data.
type Source struct {
	Synthetic bool   `json:"synthetic"`
	Reason    Reason `json:"reason,omitempty"`
}

func (s Source) String() string {
	if !s.Synthetic {
		return "live"
	}
	return "synthetic:" + string(s.Reason)
}

type Result struct {
	ID        string                 `json:"id"`
	Query     types.LocationQuery    `json:"query"`
	Location  types.ResolvedLocation `json:"location"`
	Reading   types.Reading          `json:"reading"`
	Info      classify.Info          `json:"info"`
	Blurb     classify.Blurb         `json:"blurb"`
	Neighbors []types.MapPoint       `json:"neighbors"`
	Source    Source                 `json:"source"`
	Trace     []State                `json:"trace"`
	Elapsed   time.Duration          `json:"-"`
	CreatedAt time.Time              `json:"createdAt"`
}

type Geocoder interface {
	ByPostalCode(ctx context.Context, code string) (types.ResolvedLocation, error)
	ByFreeText(ctx context.Context, text string) (types.ResolvedLocation, error)
	Reverse(ctx context.Context, c types.Coordinates) (types.ResolvedLocation, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, c types.Coordinates) (types.Reading, error)
}

type Synthesizer interface {
	Reading() types.Reading
	Jitter(center types.Coordinates) types.Coordinates
	Ring(center types.Coordinates, n int) []types.MapPoint
}

// Observer is told about every rendered result. Failures are logged and
// never change the result.
type Observer interface {
	Name() string
	Observe(ctx context.Context, r Result) error
}

type Options struct {
	// DefaultLocation centers synthetic data when nothing about the query
	// could be resolved.
	DefaultLocation types.ResolvedLocation
	NeighborPoints  int
	ObserverTimeout time.Duration
	Logger          *slog.Logger
	Now             func() time.Time
	NewID           func() string
}

type Pipeline struct {
	geo       Geocoder
	fetcher   Fetcher
	synth     Synthesizer
	observers []Observer
	opts      Options
	tracer    trace.Tracer
}

func New(geo Geocoder, fetcher Fetcher, synth Synthesizer, opts Options, observers ...Observer) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	if opts.ObserverTimeout <= 0 {
		opts.ObserverTimeout = 5 * time.Second
	}
	if opts.NeighborPoints < 0 {
		opts.NeighborPoints = 0
	}
	return &Pipeline{
		geo:       geo,
		fetcher:   fetcher,
		synth:     synth,
		observers: observers,
		opts:      opts,
		tracer:    otel.Tracer("aqi-explorer/pipeline"),
	}
}

func (p *Pipeline) ResolveByPostalCode(ctx context.Context, code string) (Result, error) {
	return p.Resolve(ctx, types.PostalCodeQuery(code))
}

func (p *Pipeline) ResolveByFreeText(ctx context.Context, text string) (Result, error) {
	return p.Resolve(ctx, types.FreeTextQuery(text))
}

func (p *Pipeline) ResolveByCoordinates(ctx context.Context, c types.Coordinates) (Result, error) {
	return p.Resolve(ctx, types.CoordinatesQuery(c))
}

// Resolve runs one lookup end to end. The only error it returns is a
// *ValidationError; every upstream failure ends in a synthetic result.
func (p *Pipeline) Resolve(ctx context.Context, q types.LocationQuery) (Result, error) {
	q, err := validate(q)
	if err != nil {
		return Result{}, err
	}

	start := p.opts.Now()
	res := Result{
		ID:        p.opts.NewID(),
		Query:     q,
		Trace:     []State{Idle, Resolving},
		CreatedAt: start.UTC(),
	}

	out := p.resolve(ctx, q)
	if out.err == nil {
		res.Trace = append(res.Trace, Fetching)
		out = p.fetch(ctx, out)
	}
	if out.err != nil {
		res.Trace = append(res.Trace, Synthesizing)
		p.logUpstreamFailure(q, out)
	}
	out = p.orSynthetic(q, out)

	res.Trace = append(res.Trace, Classifying)
	res.Location = out.loc
	res.Reading = out.reading
	res.Source = out.source
	res.Info = classify.Classify(out.reading.Index)
	res.Blurb = classify.BlurbFor(out.reading.Index)
	res.Neighbors = p.synth.Ring(out.loc.Coordinates, p.opts.NeighborPoints)
	res.Trace = append(res.Trace, Rendered)
	res.Elapsed = p.opts.Now().Sub(start)

	p.notify(ctx, res)
	return res, nil
}

// stageOutcome carries what is known after a stage. err is set when the
// stage failed and reason says how it will be reported.
type stageOutcome struct {
	loc     types.ResolvedLocation
	known   bool
	reading types.Reading
	source  Source
	err     error
	reason  Reason
}

func (p *Pipeline) resolve(ctx context.Context, q types.LocationQuery) stageOutcome {
	ctx, span := p.tracer.Start(ctx, "pipeline.resolve", trace.WithAttributes(
		attribute.String("query.kind", string(q.Kind)),
	))
	defer span.End()

	var (
		loc types.ResolvedLocation
		err error
	)
	switch q.Kind {
	case types.QueryPostalCode:
		loc, err = p.geo.ByPostalCode(ctx, q.PostalCode)
	case types.QueryFreeText:
		loc, err = p.geo.ByFreeText(ctx, q.Text)
	case types.QueryCoordinates:
		// reverse geocoding only names the point; its failure is not a
		// reason to abandon live data
		loc, err = p.geo.Reverse(ctx, q.Coordinates)
		if err != nil {
			span.AddEvent("reverse geocoding degraded", trace.WithAttributes(attribute.String("error", err.Error())))
			p.opts.Logger.Debug("reverse geocoding degraded", "coordinates", q.Coordinates.String(), "err", err)
		}
		return stageOutcome{loc: types.NewResolvedLocation(q.Coordinates, loc.DisplayName), known: true}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "geocoding failed")
		return stageOutcome{err: err, reason: reasonFor(err, ReasonGeocodeFailed)}
	}
	span.SetAttributes(attribute.String("location.name", loc.DisplayName))
	return stageOutcome{loc: loc, known: true}
}

func (p *Pipeline) fetch(ctx context.Context, in stageOutcome) stageOutcome {
	ctx, span := p.tracer.Start(ctx, "pipeline.fetch", trace.WithAttributes(
		attribute.Float64("lat", in.loc.Coordinates.Lat),
		attribute.Float64("lon", in.loc.Coordinates.Lon),
	))
	defer span.End()

	reading, err := p.fetcher.Fetch(ctx, in.loc.Coordinates)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		in.err = err
		in.reason = reasonFor(err, ReasonFetchFailed)
		return in
	}
	span.SetAttributes(attribute.Int("aqi.index", reading.Index))
	in.reading = reading
	in.source = Source{}
	return in
}

// orSynthetic passes successful outcomes through and turns failed ones into
// a synthetic reading. The display name keeps whatever the user can
// recognize: the resolved name, else what they typed.
func (p *Pipeline) orSynthetic(q types.LocationQuery, out stageOutcome) stageOutcome {
	if out.err == nil {
		return out
	}

	center := p.opts.DefaultLocation.Coordinates
	name := q.Label()
	if out.known {
		center = out.loc.Coordinates
		name = out.loc.DisplayName
	}

	return stageOutcome{
		loc:     types.NewResolvedLocation(p.synth.Jitter(center), name),
		known:   true,
		reading: p.synth.Reading(),
		source:  Source{Synthetic: true, Reason: out.reason},
	}
}

func (p *Pipeline) logUpstreamFailure(q types.LocationQuery, out stageOutcome) {
	attrs := []any{"kind", q.Kind, "query", q.Label(), "reason", out.reason, "err", out.err}
	if out.reason == ReasonNoCredential {
		p.opts.Logger.Debug("no upstream credential, serving synthetic data", attrs...)
		return
	}
	p.opts.Logger.Warn("upstream failed, serving synthetic data", attrs...)
}

func (p *Pipeline) notify(ctx context.Context, res Result) {
	if len(p.observers) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.ObserverTimeout)
	defer cancel()
	for _, o := range p.observers {
		if err := o.Observe(ctx, res); err != nil {
			p.opts.Logger.Error("observer failed", "observer", o.Name(), "lookup_id", res.ID, "err", err)
		}
	}
}

func reasonFor(err error, otherwise Reason) Reason {
	if errors.Is(err, owm.ErrNoCredential) {
		return ReasonNoCredential
	}
	return otherwise
}

func validate(q types.LocationQuery) (types.LocationQuery, error) {
	switch q.Kind {
	case types.QueryPostalCode:
		q.PostalCode = normalizeText(q.PostalCode)
		if !geocoding.ValidPostalCode(q.PostalCode) {
			return q, &ValidationError{Field: "postal code", Err: ErrInvalidPostalCode}
		}
	case types.QueryFreeText:
		q.Text = normalizeText(q.Text)
		if q.Text == "" {
			return q, &ValidationError{Field: "location", Err: ErrEmptyQuery}
		}
	case types.QueryCoordinates:
		if !q.Coordinates.Valid() {
			return q, &ValidationError{Field: "coordinates", Err: ErrInvalidCoordinates}
		}
	default:
		return q, &ValidationError{Field: "query", Err: errors.New("unknown query kind " + string(q.Kind))}
	}
	return q, nil
}
