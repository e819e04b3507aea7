package mapview

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"aqi-explorer/internal/modules/airquality/classify"
	"aqi-explorer/internal/modules/airquality/pipeline"
	"aqi-explorer/internal/modules/airquality/types"
	"aqi-explorer/internal/readiness"
)

var testConfig = Config{
	Default:     types.ResolvedLocation{Coordinates: types.Coordinates{Lat: 28.6139, Lon: 77.2090}, DisplayName: "New Delhi, India"},
	DefaultZoom: 10,
	ResultZoom:  12,
	Readiness:   readiness.Options{Interval: time.Millisecond, Attempts: 5},
}

func sampleResult() pipeline.Result {
	return pipeline.Result{
		Location: types.ResolvedLocation{Coordinates: types.Coordinates{Lat: 18.52, Lon: 73.85}, DisplayName: "Pune <IN>"},
		Reading:  types.Reading{Index: 3},
		Info:     classify.Classify(3),
		Neighbors: []types.MapPoint{
			{Coordinates: types.Coordinates{Lat: 18.6, Lon: 73.85}, Index: 1},
			{Coordinates: types.Coordinates{Lat: 18.52, Lon: 73.95}, Index: 5},
		},
	}
}

func TestInitSelectionMap(t *testing.T) {
	w := NewSceneWidget()
	p := NewPresenter(w, testConfig)

	if err := p.InitSelectionMap(context.Background()); err != nil {
		t.Fatalf("InitSelectionMap: %v", err)
	}
	ms, ok := w.Map(SelectionContainer)
	if !ok {
		t.Fatal("selection map not drawn")
	}
	if ms.Center != testConfig.Default.Coordinates || ms.Zoom != 10 {
		t.Errorf("center/zoom = %v/%d", ms.Center, ms.Zoom)
	}
	if ms.OnClick != ClickLookupCoordinates {
		t.Errorf("OnClick = %q", ms.OnClick)
	}
	if len(ms.Tiles) != 1 || ms.Tiles[0] != DefaultTiles {
		t.Errorf("tiles = %+v", ms.Tiles)
	}
}

func TestInitResultsMap(t *testing.T) {
	w := NewSceneWidget()
	p := NewPresenter(w, testConfig)

	if err := p.InitResultsMap(context.Background(), sampleResult()); err != nil {
		t.Fatalf("InitResultsMap: %v", err)
	}
	ms, ok := w.Map(ResultsContainer)
	if !ok {
		t.Fatal("results map not drawn")
	}
	if ms.Zoom != 12 || ms.Center != (types.Coordinates{Lat: 18.52, Lon: 73.85}) {
		t.Errorf("center/zoom = %v/%d", ms.Center, ms.Zoom)
	}
	if len(ms.Layers) != 3 {
		t.Fatalf("got %d layers; want marker + 2 neighbors", len(ms.Layers))
	}
	marker := ms.Layers[0]
	if marker.Kind != "marker" || marker.Popup == nil || !marker.Popup.Open {
		t.Fatalf("marker = %+v", marker)
	}
	for _, want := range []string{"Pune &lt;IN&gt;", "aqi-unhealthy-sensitive", "AQI: 3", "Moderate"} {
		if !strings.Contains(marker.Popup.HTML, want) {
			t.Errorf("marker popup %q missing %q", marker.Popup.HTML, want)
		}
	}
	good, severe := ms.Layers[1], ms.Layers[2]
	if good.Style.FillColor != "#00e400" || severe.Style.FillColor != "#8f3f97" {
		t.Errorf("neighbor colors = %s/%s", good.Style.FillColor, severe.Style.FillColor)
	}
	if good.Popup == nil || good.Popup.Open || !strings.Contains(good.Popup.HTML, "Good") {
		t.Errorf("neighbor popup = %+v", good.Popup)
	}
}

func TestInit_isIdempotent(t *testing.T) {
	w := NewSceneWidget()
	p := NewPresenter(w, testConfig)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := p.InitSelectionMap(ctx); err != nil {
			t.Fatalf("InitSelectionMap #%d: %v", i, err)
		}
		if err := p.InitResultsMap(ctx, sampleResult()); err != nil {
			t.Fatalf("InitResultsMap #%d: %v", i, err)
		}
	}
	if n := len(w.Scene().Maps); n != 2 {
		t.Errorf("scene holds %d maps; want 2", n)
	}

	if err := p.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if n := len(w.Scene().Maps); n != 0 {
		t.Errorf("scene holds %d maps after Dispose; want 0", n)
	}
	if err := p.Dispose(); err != nil {
		t.Errorf("second Dispose: %v", err)
	}
}

func TestPresenter_waitsForWidget(t *testing.T) {
	probes := 0
	w := NewSceneWidgetWithProbe(func() bool {
		probes++
		return probes >= 3
	})
	p := NewPresenter(w, testConfig)

	if err := p.InitSelectionMap(context.Background()); err != nil {
		t.Fatalf("InitSelectionMap: %v", err)
	}
	if probes != 3 {
		t.Errorf("probed %d times; want 3", probes)
	}
	if err := p.InitResultsMap(context.Background(), sampleResult()); err != nil {
		t.Fatalf("InitResultsMap: %v", err)
	}
	if probes != 3 {
		t.Errorf("probed again after becoming ready (%d)", probes)
	}
}

func TestPresenter_widgetNeverReady(t *testing.T) {
	w := NewSceneWidgetWithProbe(func() bool { return false })
	p := NewPresenter(w, testConfig)

	err := p.InitResultsMap(context.Background(), sampleResult())
	if !errors.Is(err, readiness.ErrNotReady) {
		t.Fatalf("err = %v; want ErrNotReady", err)
	}
	if len(w.Scene().Maps) != 0 {
		t.Error("drew a map on a widget that never became ready")
	}
}
