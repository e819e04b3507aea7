package views

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"aqi-explorer/internal/modules/airquality/classify"
	"aqi-explorer/internal/modules/airquality/pipeline"
	"aqi-explorer/internal/modules/airquality/types"
)

func mustLoad(t *testing.T) {
	t.Helper()
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates(): %v", err)
	}
}

func sampleResult(synthetic bool) pipeline.Result {
	return pipeline.Result{
		ID:       "abc-123",
		Location: types.ResolvedLocation{Coordinates: types.Coordinates{Lat: 28.6, Lon: 77.2}, DisplayName: "New Delhi, 110001"},
		Reading: types.Reading{
			Index:     4,
			Synthetic: synthetic,
			Pollutants: map[types.Pollutant]float64{
				types.PM25: 81.24, types.PM10: 120, types.O3: 33.333, types.NO2: 12.04, types.SO2: 5.5,
			},
		},
		Info:   classify.Classify(4),
		Blurb:  classify.BlurbFor(4),
		Source: pipeline.Source{Synthetic: synthetic, Reason: pipeline.ReasonNoCredential},
	}
}

func TestLoadTemplates_success(t *testing.T) {
	mustLoad(t)
	if pageTmpl == nil {
		t.Fatal("LoadTemplates() left pageTmpl nil")
	}
}

func TestLoadTemplates_failure_sub(t *testing.T) {
	// Empty FS has no "templates" directory; ParseFS finds no files.
	err := loadTemplatesFromFS(fstest.MapFS{}, "templates")
	if err == nil {
		t.Fatal("loadTemplatesFromFS(emptyFS) = nil; want error")
	}
}

func TestLoadTemplates_failure_parse(t *testing.T) {
	badFS := fstest.MapFS{
		"templates/index.html": {Data: []byte("{{ .")},
	}
	if err := loadTemplatesFromFS(badFS, "templates"); err == nil {
		t.Fatal("loadTemplatesFromFS(badFS) = nil; want error")
	}
}

func TestRender_notLoaded(t *testing.T) {
	prev := pageTmpl
	pageTmpl = nil
	t.Cleanup(func() { pageTmpl = prev })

	var buf bytes.Buffer
	renders := map[string]func() error{
		"index":   func() error { return RenderIndex(&buf, &IndexData{}) },
		"results": func() error { return RenderResultsPartial(&buf, &ResultsData{}) },
		"lookups": func() error { return RenderLookupsPartial(&buf, &LookupsData{}) },
		"error":   func() error { return RenderErrorPartial(&buf, &ErrorData{}) },
	}
	for name, render := range renders {
		err := render()
		if err == nil || !strings.Contains(err.Error(), "not loaded") {
			t.Errorf("%s: err = %v; want \"not loaded\" error", name, err)
		}
	}
}

func TestRenderIndex(t *testing.T) {
	mustLoad(t)

	data := &IndexData{
		DemoMode:        true,
		SelectionScene:  `{"maps":[]}`,
		ReadyIntervalMs: 100,
		ReadyAttempts:   50,
		Lookups: NewLookupsData([]types.Lookup{
			{ID: "1", Query: "Pune", DisplayName: "Pune, IN", Index: 2, Status: "Fair", CreatedAt: time.Date(2025, 2, 3, 14, 30, 0, 0, time.UTC)},
		}),
	}
	var buf bytes.Buffer
	if err := RenderIndex(&buf, data); err != nil {
		t.Fatalf("RenderIndex() = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"<!DOCTYPE html>",
		`id="pincode-input"`,
		`id="location-input"`,
		`id="input-map"`,
		`data-scene="{&#34;maps&#34;:[]}"`,
		`data-ready-attempts="50"`,
		"Demo Mode:",
		"Pune, IN",
		"aqi-moderate",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("index missing %q", want)
		}
	}
}

func TestRenderIndex_liveModeHasNoBanner(t *testing.T) {
	mustLoad(t)
	var buf bytes.Buffer
	if err := RenderIndex(&buf, &IndexData{}); err != nil {
		t.Fatalf("RenderIndex() = %v", err)
	}
	if strings.Contains(buf.String(), "Demo Mode:") {
		t.Error("live index shows the demo banner")
	}
	if !strings.Contains(buf.String(), "No lookups yet.") {
		t.Error("empty history placeholder missing")
	}
}

func TestRenderResultsPartial(t *testing.T) {
	mustLoad(t)

	data := NewResultsData(sampleResult(false), []byte(`{"maps":[{"container":"main-map"}]}`))
	var buf bytes.Buffer
	if err := RenderResultsPartial(&buf, &data); err != nil {
		t.Fatalf("RenderResultsPartial() = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"New Delhi, 110001",
		"aqi-unhealthy",
		"Poor",
		"81.2 μg/m³",
		"120.0 μg/m³",
		"33.3 μg/m³",
		"12.0 μg/m³",
		"SO₂",
		"Yikes!",
		`id="main-map"`,
		`data-source="live"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("results missing %q", want)
		}
	}
	if strings.Contains(out, "Demo Mode:") {
		t.Error("live result shows the demo banner")
	}
	if strings.Contains(out, "<!DOCTYPE html>") {
		t.Error("partial rendered the full page")
	}
}

func TestRenderResultsPartial_synthetic(t *testing.T) {
	mustLoad(t)

	data := NewResultsData(sampleResult(true), nil)
	var buf bytes.Buffer
	if err := RenderResultsPartial(&buf, &data); err != nil {
		t.Fatalf("RenderResultsPartial() = %v", err)
	}
	if !strings.Contains(buf.String(), "Using simulated data. Get a free API key from OpenWeatherMap for real data.") {
		t.Error("synthetic result missing demo banner")
	}
	if !strings.Contains(buf.String(), "synthetic:no_credential") {
		t.Error("synthetic result missing source")
	}
}

func TestRenderResultsPartial_escapesName(t *testing.T) {
	mustLoad(t)

	res := sampleResult(false)
	res.Location.DisplayName = `<script>alert(1)</script>`
	data := NewResultsData(res, nil)
	var buf bytes.Buffer
	if err := RenderResultsPartial(&buf, &data); err != nil {
		t.Fatalf("RenderResultsPartial() = %v", err)
	}
	if strings.Contains(buf.String(), "<script>alert(1)</script>") {
		t.Error("display name rendered unescaped")
	}
}

func TestRenderErrorPartial(t *testing.T) {
	mustLoad(t)
	var buf bytes.Buffer
	if err := RenderErrorPartial(&buf, &ErrorData{Field: "postal code", Message: "Please enter a valid 6-digit pincode."}); err != nil {
		t.Fatalf("RenderErrorPartial() = %v", err)
	}
	if !strings.Contains(buf.String(), "Please enter a valid 6-digit pincode.") {
		t.Errorf("error partial = %q", buf.String())
	}
}

func TestPollutantValues(t *testing.T) {
	got := pollutantValues(map[types.Pollutant]float64{types.PM25: 1, types.NH3: 2.26})
	want := []PollutantValue{
		{"PM2.5", "1.0 μg/m³"},
		{"PM10", "N/A"},
		{"O₃", "N/A"},
		{"NO₂", "N/A"},
		{"NH₃", "2.3 μg/m³"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d values; want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value %d = %+v; want %+v", i, got[i], want[i])
		}
	}
}

// Ensure renders propagate write errors (e.g. closed writer).
func TestRenderResultsPartial_writeError(t *testing.T) {
	mustLoad(t)

	data := NewResultsData(sampleResult(false), nil)
	err := RenderResultsPartial(&failingWriter{err: io.ErrClosedPipe}, &data)
	if err != io.ErrClosedPipe {
		t.Errorf("RenderResultsPartial() = %v; want %v", err, io.ErrClosedPipe)
	}
}

type failingWriter struct{ err error }

func (f *failingWriter) Write([]byte) (int, error) { return 0, f.err }
