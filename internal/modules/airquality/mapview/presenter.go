package mapview

import (
	"context"
	"fmt"
	"html"
	"sync"

	"aqi-explorer/internal/modules/airquality/classify"
	"aqi-explorer/internal/modules/airquality/pipeline"
	"aqi-explorer/internal/modules/airquality/types"
	"aqi-explorer/internal/readiness"
)

const (
	SelectionContainer = "input-map"
	ResultsContainer   = "main-map"
)

// DefaultTiles is the OpenStreetMap tile server.
var DefaultTiles = TileLayer{
	URLTemplate: "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
	Attribution: "© OpenStreetMap contributors",
	MaxZoom:     18,
}

var neighborStyle = CircleStyle{Radius: 8, Weight: 2, Opacity: 0.8, FillOpacity: 0.6}

type Config struct {
	Default     types.ResolvedLocation
	DefaultZoom int
	ResultZoom  int
	Tiles       TileLayer
	Readiness   readiness.Options
}

// Presenter owns at most one selection map and one results map. Creating
// either again disposes the previous one first.
type Presenter struct {
	mu        sync.Mutex
	widget    Widget
	cfg       Config
	ready     bool
	selection MapHandle
	results   MapHandle
}

func NewPresenter(w Widget, cfg Config) *Presenter {
	if cfg.Tiles.URLTemplate == "" {
		cfg.Tiles = DefaultTiles
	}
	return &Presenter{widget: w, cfg: cfg}
}

// InitSelectionMap draws the click-to-choose map centered on the default
// location.
func (p *Presenter) InitSelectionMap(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureReady(ctx); err != nil {
		return err
	}
	if err := p.disposeLocked(&p.selection); err != nil {
		return err
	}

	m, err := p.widget.CreateMap(SelectionContainer, p.cfg.Default.Coordinates, p.cfg.DefaultZoom)
	if err != nil {
		return fmt.Errorf("create selection map: %w", err)
	}
	p.selection = m
	if err := p.widget.AddTileLayer(m, p.cfg.Tiles); err != nil {
		return fmt.Errorf("selection tiles: %w", err)
	}
	if err := p.widget.OnClick(m, ClickLookupCoordinates); err != nil {
		return fmt.Errorf("selection click: %w", err)
	}
	return nil
}

// InitResultsMap draws res: a marker with an open popup at the location and
// one colored circle per neighbor.
func (p *Presenter) InitResultsMap(ctx context.Context, res pipeline.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureReady(ctx); err != nil {
		return err
	}
	if err := p.disposeLocked(&p.results); err != nil {
		return err
	}

	m, err := p.widget.CreateMap(ResultsContainer, res.Location.Coordinates, p.cfg.ResultZoom)
	if err != nil {
		return fmt.Errorf("create results map: %w", err)
	}
	p.results = m
	if err := p.widget.AddTileLayer(m, p.cfg.Tiles); err != nil {
		return fmt.Errorf("results tiles: %w", err)
	}

	marker, err := p.widget.AddMarker(m, res.Location.Coordinates)
	if err != nil {
		return fmt.Errorf("results marker: %w", err)
	}
	if err := p.widget.BindPopup(marker, locationPopup(res.Location.DisplayName, res.Reading.Index, res.Info), true); err != nil {
		return fmt.Errorf("results popup: %w", err)
	}

	for _, n := range res.Neighbors {
		info := classify.Classify(n.Index)
		style := neighborStyle
		style.FillColor = info.Color
		style.Color = info.Color
		circle, err := p.widget.AddCircleMarker(m, n.Coordinates, style)
		if err != nil {
			return fmt.Errorf("neighbor marker: %w", err)
		}
		if err := p.widget.BindPopup(circle, neighborPopup(n.Index, info), false); err != nil {
			return fmt.Errorf("neighbor popup: %w", err)
		}
	}
	return nil
}

// Dispose releases both maps. It is safe to call repeatedly.
func (p *Presenter) Dispose() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	errSel := p.disposeLocked(&p.selection)
	errRes := p.disposeLocked(&p.results)
	if errSel != nil {
		return errSel
	}
	return errRes
}

func (p *Presenter) ensureReady(ctx context.Context) error {
	if p.ready {
		return nil
	}
	if err := readiness.Wait(ctx, p.widget.Ready, p.cfg.Readiness); err != nil {
		return fmt.Errorf("map widget not ready: %w", err)
	}
	p.ready = true
	return nil
}

func (p *Presenter) disposeLocked(h *MapHandle) error {
	if *h == "" {
		return nil
	}
	err := p.widget.Dispose(*h)
	*h = ""
	if err != nil {
		return fmt.Errorf("dispose map: %w", err)
	}
	return nil
}

func locationPopup(name string, index int, info classify.Info) string {
	return fmt.Sprintf(`<div class="popup-aqi"><div class="popup-location">%s</div><div class="popup-aqi-value %s">AQI: %d</div><div>%s</div></div>`,
		html.EscapeString(name), info.Class, index, info.Status)
}

func neighborPopup(index int, info classify.Info) string {
	return fmt.Sprintf(`<div class="popup-aqi"><div class="popup-aqi-value %s">AQI: %d</div><div>%s</div></div>`,
		info.Class, index, info.Status)
}
