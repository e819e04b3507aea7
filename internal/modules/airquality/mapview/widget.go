// Package mapview draws lookups onto an interactive map through a Widget.
package mapview

import (
	"errors"

	"aqi-explorer/internal/modules/airquality/types"
)

var (
	ErrUnknownMap   = errors.New("mapview: unknown map handle")
	ErrUnknownLayer = errors.New("mapview: unknown layer handle")
)

type MapHandle string

type LayerHandle string

type TileLayer struct {
	URLTemplate string `json:"url"`
	Attribution string `json:"attribution"`
	MaxZoom     int    `json:"maxZoom"`
	MinZoom     int    `json:"minZoom,omitempty"`
}

type CircleStyle struct {
	Radius      int     `json:"radius"`
	FillColor   string  `json:"fillColor"`
	Color       string  `json:"color"`
	Weight      int     `json:"weight"`
	Opacity     float64 `json:"opacity"`
	FillOpacity float64 `json:"fillOpacity"`
}

// ClickAction names what the browser does when a map is clicked.
type ClickAction string

// ClickLookupCoordinates drops a marker at the clicked point and runs a
// coordinate lookup for it.
const ClickLookupCoordinates ClickAction = "lookup-coordinates"

// Widget is the map capability. Handles stay valid until Dispose.
type Widget interface {
	Ready() bool
	CreateMap(containerID string, center types.Coordinates, zoom int) (MapHandle, error)
	AddTileLayer(m MapHandle, layer TileLayer) error
	AddMarker(m MapHandle, at types.Coordinates) (LayerHandle, error)
	AddCircleMarker(m MapHandle, at types.Coordinates, style CircleStyle) (LayerHandle, error)
	BindPopup(l LayerHandle, html string, open bool) error
	OnClick(m MapHandle, action ClickAction) error
	Dispose(m MapHandle) error
}
