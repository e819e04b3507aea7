package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"aqi-explorer/internal/modules/airquality/geocoding"
	"aqi-explorer/internal/modules/airquality/owm"
	"aqi-explorer/internal/modules/airquality/provider"
	"aqi-explorer/internal/modules/airquality/synthetic"
	"aqi-explorer/internal/modules/airquality/types"
)

var (
	delhi = types.ResolvedLocation{Coordinates: types.Coordinates{Lat: 28.6139, Lon: 77.2090}, DisplayName: "New Delhi, India"}
	pune  = types.ResolvedLocation{Coordinates: types.Coordinates{Lat: 18.5204, Lon: 73.8567}, DisplayName: "Pune, IN"}
)

type fakeGeocoder struct {
	mu      sync.Mutex
	calls   int
	loc     types.ResolvedLocation
	err     error
	lastArg string
}

func (f *fakeGeocoder) record(arg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastArg = arg
}

func (f *fakeGeocoder) ByPostalCode(_ context.Context, code string) (types.ResolvedLocation, error) {
	f.record(code)
	return f.loc, f.err
}

func (f *fakeGeocoder) ByFreeText(_ context.Context, text string) (types.ResolvedLocation, error) {
	f.record(text)
	return f.loc, f.err
}

func (f *fakeGeocoder) Reverse(_ context.Context, c types.Coordinates) (types.ResolvedLocation, error) {
	f.record(c.String())
	if f.err != nil {
		return types.NewResolvedLocation(c, ""), f.err
	}
	return types.NewResolvedLocation(c, f.loc.DisplayName), nil
}

type fakeFetcher struct {
	calls   int
	reading types.Reading
	err     error
	at      types.Coordinates
}

func (f *fakeFetcher) Fetch(_ context.Context, c types.Coordinates) (types.Reading, error) {
	f.calls++
	f.at = c
	return f.reading, f.err
}

type fakeObserver struct {
	name    string
	err     error
	results []Result
	ctxErr  error
}

func (o *fakeObserver) Name() string { return o.name }

func (o *fakeObserver) Observe(ctx context.Context, r Result) error {
	o.ctxErr = ctx.Err()
	o.results = append(o.results, r)
	return o.err
}

var liveReading = types.Reading{
	Index: 2,
	Pollutants: map[types.Pollutant]float64{
		types.PM25: 12.5, types.PM10: 30.1, types.O3: 60, types.NO2: 10,
	},
}

func newPipeline(geo Geocoder, fetch Fetcher, observers ...Observer) *Pipeline {
	return New(geo, fetch, synthetic.NewSeeded(1), Options{
		DefaultLocation: delhi,
		NeighborPoints:  8,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewID:           func() string { return "lookup-1" },
	}, observers...)
}

func TestResolve_liveHappyPaths(t *testing.T) {
	tests := []struct {
		name     string
		query    types.LocationQuery
		geo      *fakeGeocoder
		wantName string
		wantAt   types.Coordinates
	}{
		{
			name:     "postal code",
			query:    types.PostalCodeQuery("411001"),
			geo:      &fakeGeocoder{loc: pune},
			wantName: "Pune, IN",
			wantAt:   pune.Coordinates,
		},
		{
			name:     "free text",
			query:    types.FreeTextQuery("Pune"),
			geo:      &fakeGeocoder{loc: pune},
			wantName: "Pune, IN",
			wantAt:   pune.Coordinates,
		},
		{
			name:     "coordinates",
			query:    types.CoordinatesQuery(types.Coordinates{Lat: 19.076, Lon: 72.8777}),
			geo:      &fakeGeocoder{loc: types.ResolvedLocation{DisplayName: "Mumbai, IN"}},
			wantName: "Mumbai, IN",
			wantAt:   types.Coordinates{Lat: 19.076, Lon: 72.8777},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetch := &fakeFetcher{reading: liveReading}
			res, err := newPipeline(tt.geo, fetch).Resolve(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if res.Source.Synthetic || res.Source.String() != "live" {
				t.Errorf("Source = %+v; want live", res.Source)
			}
			if res.Location.DisplayName != tt.wantName {
				t.Errorf("DisplayName = %q; want %q", res.Location.DisplayName, tt.wantName)
			}
			if fetch.at != tt.wantAt {
				t.Errorf("fetched at %v; want %v", fetch.at, tt.wantAt)
			}
			if res.Reading.Index != 2 || res.Info.Status.String() != "Fair" {
				t.Errorf("Reading/Info = %d/%s; want 2/Fair", res.Reading.Index, res.Info.Status)
			}
			if res.Blurb.Headline.Label != "Not bad!" {
				t.Errorf("Blurb = %q", res.Blurb.Headline.Label)
			}
			if len(res.Neighbors) != 8 {
				t.Errorf("got %d neighbors; want 8", len(res.Neighbors))
			}
			wantTrace := []State{Idle, Resolving, Fetching, Classifying, Rendered}
			if !reflect.DeepEqual(res.Trace, wantTrace) {
				t.Errorf("Trace = %v; want %v", res.Trace, wantTrace)
			}
			if res.ID != "lookup-1" {
				t.Errorf("ID = %q", res.ID)
			}
		})
	}
}

func TestResolve_validationMakesNoCalls(t *testing.T) {
	tests := []struct {
		name    string
		query   types.LocationQuery
		wantErr error
	}{
		{name: "short postal code", query: types.PostalCodeQuery("11000"), wantErr: ErrInvalidPostalCode},
		{name: "long postal code", query: types.PostalCodeQuery("1100011"), wantErr: ErrInvalidPostalCode},
		{name: "letters in postal code", query: types.PostalCodeQuery("11000a"), wantErr: ErrInvalidPostalCode},
		{name: "blank text", query: types.FreeTextQuery("   \t "), wantErr: ErrEmptyQuery},
		{name: "latitude out of range", query: types.CoordinatesQuery(types.Coordinates{Lat: 91, Lon: 0}), wantErr: ErrInvalidCoordinates},
		{name: "unknown kind", query: types.LocationQuery{Kind: "telepathy"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			geo := &fakeGeocoder{loc: pune}
			fetch := &fakeFetcher{reading: liveReading}
			obs := &fakeObserver{name: "history"}
			_, err := newPipeline(geo, fetch, obs).Resolve(context.Background(), tt.query)
			if !IsValidation(err) {
				t.Fatalf("err = %v; want *ValidationError", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v; want %v", err, tt.wantErr)
			}
			if geo.calls != 0 || fetch.calls != 0 {
				t.Errorf("made %d geocoding and %d fetch calls; want 0", geo.calls, fetch.calls)
			}
			if len(obs.results) != 0 {
				t.Error("observer notified for a rejected query")
			}
		})
	}
}

func TestResolve_normalizesInput(t *testing.T) {
	geo := &fakeGeocoder{loc: pune}
	p := newPipeline(geo, &fakeFetcher{reading: liveReading})

	res, err := p.ResolveByPostalCode(context.Background(), " ４１１００１ ")
	if err != nil {
		t.Fatalf("ResolveByPostalCode: %v", err)
	}
	if geo.lastArg != "411001" || res.Query.PostalCode != "411001" {
		t.Errorf("postal code passed as %q, stored as %q; want 411001", geo.lastArg, res.Query.PostalCode)
	}

	if _, err := p.ResolveByFreeText(context.Background(), "  New \t  Delhi\n"); err != nil {
		t.Fatalf("ResolveByFreeText: %v", err)
	}
	if geo.lastArg != "New Delhi" {
		t.Errorf("text passed as %q; want %q", geo.lastArg, "New Delhi")
	}
}

func TestResolve_geocodeFailureFallsBack(t *testing.T) {
	tests := []struct {
		name       string
		query      types.LocationQuery
		geoErr     error
		wantName   string
		wantReason Reason
	}{
		{
			name:       "postal not found",
			query:      types.PostalCodeQuery("999999"),
			geoErr:     fmt.Errorf("%w: zip 999999", geocoding.ErrNotFound),
			wantName:   "999999",
			wantReason: ReasonGeocodeFailed,
		},
		{
			name:       "text not found",
			query:      types.FreeTextQuery("Atlantis"),
			geoErr:     geocoding.ErrNotFound,
			wantName:   "Atlantis",
			wantReason: ReasonGeocodeFailed,
		},
		{
			name:       "no credential",
			query:      types.FreeTextQuery("Pune"),
			geoErr:     owm.ErrNoCredential,
			wantName:   "Pune",
			wantReason: ReasonNoCredential,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetch := &fakeFetcher{reading: liveReading}
			res, err := newPipeline(&fakeGeocoder{err: tt.geoErr}, fetch).Resolve(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("Resolve returned %v; upstream failures must not surface", err)
			}
			if fetch.calls != 0 {
				t.Errorf("fetch called %d times after geocoding failed", fetch.calls)
			}
			if !res.Source.Synthetic || res.Source.Reason != tt.wantReason {
				t.Errorf("Source = %+v; want synthetic %s", res.Source, tt.wantReason)
			}
			if !res.Reading.Synthetic {
				t.Error("reading not flagged synthetic")
			}
			if res.Location.DisplayName != tt.wantName {
				t.Errorf("DisplayName = %q; want %q", res.Location.DisplayName, tt.wantName)
			}
			c := res.Location.Coordinates
			if abs(c.Lat-delhi.Coordinates.Lat) > 0.05 || abs(c.Lon-delhi.Coordinates.Lon) > 0.05 {
				t.Errorf("synthetic coordinates %v not near default location", c)
			}
			wantTrace := []State{Idle, Resolving, Synthesizing, Classifying, Rendered}
			if !reflect.DeepEqual(res.Trace, wantTrace) {
				t.Errorf("Trace = %v; want %v", res.Trace, wantTrace)
			}
		})
	}
}

func TestResolve_fetchFailureKeepsResolvedName(t *testing.T) {
	fetch := &fakeFetcher{err: fmt.Errorf("%w: status 500", provider.ErrUnavailable)}
	res, err := newPipeline(&fakeGeocoder{loc: pune}, fetch).ResolveByPostalCode(context.Background(), "411001")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source.Reason != ReasonFetchFailed {
		t.Errorf("Reason = %q; want fetch_failed", res.Source.Reason)
	}
	if res.Location.DisplayName != "Pune, IN" {
		t.Errorf("DisplayName = %q; want resolved name", res.Location.DisplayName)
	}
	c := res.Location.Coordinates
	if abs(c.Lat-pune.Coordinates.Lat) > 0.05 || abs(c.Lon-pune.Coordinates.Lon) > 0.05 {
		t.Errorf("synthetic coordinates %v not near resolved location", c)
	}
	if res.Reading.Index < 1 || res.Reading.Index > 5 {
		t.Errorf("synthetic index %d outside 1..5", res.Reading.Index)
	}
	wantTrace := []State{Idle, Resolving, Fetching, Synthesizing, Classifying, Rendered}
	if !reflect.DeepEqual(res.Trace, wantTrace) {
		t.Errorf("Trace = %v; want %v", res.Trace, wantTrace)
	}
}

func TestResolve_coordinatesReverseFailureOnlyDegradesName(t *testing.T) {
	c := types.Coordinates{Lat: 12.9716, Lon: 77.5946}
	fetch := &fakeFetcher{reading: liveReading}
	res, err := newPipeline(&fakeGeocoder{err: geocoding.ErrNotFound}, fetch).ResolveByCoordinates(context.Background(), c)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source.Synthetic {
		t.Errorf("Source = %+v; want live", res.Source)
	}
	if res.Location.DisplayName != "12.9716, 77.5946" {
		t.Errorf("DisplayName = %q; want formatted coordinates", res.Location.DisplayName)
	}
	if fetch.at != c {
		t.Errorf("fetched at %v; want %v", fetch.at, c)
	}
}

func TestResolve_coordinatesWithoutCredential(t *testing.T) {
	c := types.Coordinates{Lat: 12.9716, Lon: 77.5946}
	fetch := &fakeFetcher{err: fmt.Errorf("%w: %w", provider.ErrUnavailable, owm.ErrNoCredential)}
	res, err := newPipeline(&fakeGeocoder{err: owm.ErrNoCredential}, fetch).ResolveByCoordinates(context.Background(), c)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source.Reason != ReasonNoCredential {
		t.Errorf("Reason = %q; want no_credential", res.Source.Reason)
	}
	if res.Location.DisplayName != "12.9716, 77.5946" {
		t.Errorf("DisplayName = %q", res.Location.DisplayName)
	}
	got := res.Location.Coordinates
	if abs(got.Lat-c.Lat) > 0.05 || abs(got.Lon-c.Lon) > 0.05 {
		t.Errorf("synthetic coordinates %v not near clicked point", got)
	}
}

func TestResolve_observers(t *testing.T) {
	failing := &fakeObserver{name: "mqtt", err: errors.New("broker down")}
	ok := &fakeObserver{name: "history"}
	p := newPipeline(&fakeGeocoder{loc: pune}, &fakeFetcher{reading: liveReading}, failing, ok)

	ctx, cancel := context.WithCancel(context.Background())
	res, err := p.ResolveByFreeText(ctx, "Pune")
	cancel()
	if err != nil {
		t.Fatalf("observer failure surfaced: %v", err)
	}
	if len(failing.results) != 1 || len(ok.results) != 1 {
		t.Fatalf("observers notified %d/%d times; want 1/1", len(failing.results), len(ok.results))
	}
	if ok.results[0].ID != res.ID {
		t.Errorf("observer saw %q; want %q", ok.results[0].ID, res.ID)
	}
	if ok.ctxErr != nil {
		t.Errorf("observer context already done: %v", ok.ctxErr)
	}
}

func TestResolve_elapsedUsesClock(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	p := New(&fakeGeocoder{loc: pune}, &fakeFetcher{reading: liveReading}, synthetic.NewSeeded(2), Options{
		DefaultLocation: delhi,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now: func() time.Time {
			calls++
			return base.Add(time.Duration(calls-1) * 250 * time.Millisecond)
		},
	})
	res, err := p.ResolveByFreeText(context.Background(), "Pune")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Elapsed != 250*time.Millisecond {
		t.Errorf("Elapsed = %v; want 250ms", res.Elapsed)
	}
	if !res.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v; want %v", res.CreatedAt, base)
	}
	if len(res.Neighbors) != 0 {
		t.Errorf("got %d neighbors with NeighborPoints=0", len(res.Neighbors))
	}
	if res.ID == "" {
		t.Error("default ID generator produced empty id")
	}
}

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		lat, lon string
		want     types.Coordinates
		wantErr  bool
	}{
		{lat: "28.6139", lon: "77.2090", want: types.Coordinates{Lat: 28.6139, Lon: 77.209}},
		{lat: " -33.86 ", lon: "151.21", want: types.Coordinates{Lat: -33.86, Lon: 151.21}},
		{lat: "abc", lon: "1", wantErr: true},
		{lat: "", lon: "", wantErr: true},
		{lat: "95", lon: "0", wantErr: true},
		{lat: "0", lon: "181", wantErr: true},
		{lat: "NaN", lon: "0", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseCoordinates(tt.lat, tt.lon)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidCoordinates) || !IsValidation(err) {
				t.Errorf("ParseCoordinates(%q, %q) err = %v; want validation error", tt.lat, tt.lon, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseCoordinates(%q, %q) = %v, %v; want %v", tt.lat, tt.lon, got, err, tt.want)
		}
	}
}

func TestValidationError_Message(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: ErrInvalidPostalCode, want: "Please enter a valid 6-digit pincode."},
		{err: ErrEmptyQuery, want: "Please enter a location."},
		{err: ErrInvalidCoordinates, want: "Please choose a valid location on the map."},
	}
	for _, tt := range tests {
		ve := &ValidationError{Field: "x", Err: tt.err}
		if got := ve.Message(); got != tt.want {
			t.Errorf("Message() = %q; want %q", got, tt.want)
		}
	}
}

func TestNormalizeText(t *testing.T) {
	tests := map[string]string{
		"  Pune  ":         "Pune",
		"New\t\tDelhi":     "New Delhi",
		"１１０００１":           "110001",
		"Ko\u0000lkata":    "Kolkata",
		"São  Paulo\n":     "São Paulo",
		"":                 "",
	}
	for in, want := range tests {
		if got := normalizeText(in); got != want {
			t.Errorf("normalizeText(%q) = %q; want %q", in, got, want)
		}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
