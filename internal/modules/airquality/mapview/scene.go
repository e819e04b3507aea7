package mapview

import (
	"encoding/json"
	"fmt"
	"sync"

	"aqi-explorer/internal/modules/airquality/types"
)

// Scene is the serialized form of everything drawn through a SceneWidget.
// The browser replays it through Leaflet.
type Scene struct {
	Maps []MapScene `json:"maps"`
}

type MapScene struct {
	Handle    MapHandle         `json:"handle"`
	Container string            `json:"container"`
	Center    types.Coordinates `json:"center"`
	Zoom      int               `json:"zoom"`
	Tiles     []TileLayer       `json:"tiles"`
	Layers    []LayerScene      `json:"layers"`
	OnClick   ClickAction       `json:"onClick,omitempty"`
}

type LayerScene struct {
	Handle LayerHandle       `json:"handle"`
	Kind   string            `json:"kind"`
	At     types.Coordinates `json:"at"`
	Style  *CircleStyle      `json:"style,omitempty"`
	Popup  *Popup            `json:"popup,omitempty"`
}

type Popup struct {
	HTML string `json:"html"`
	Open bool   `json:"open"`
}

// SceneWidget implements Widget by recording calls. Disposed maps are
// dropped from the scene.
type SceneWidget struct {
	mu      sync.Mutex
	ready   func() bool
	seq     int
	maps    []*MapScene
	layerOf map[LayerHandle]*MapScene
}

// NewSceneWidget returns a widget that is always ready.
func NewSceneWidget() *SceneWidget {
	return NewSceneWidgetWithProbe(func() bool { return true })
}

// NewSceneWidgetWithProbe lets callers decide when the widget is usable.
func NewSceneWidgetWithProbe(ready func() bool) *SceneWidget {
	return &SceneWidget{ready: ready, layerOf: make(map[LayerHandle]*MapScene)}
}

func (w *SceneWidget) Ready() bool {
	return w.ready()
}

func (w *SceneWidget) CreateMap(containerID string, center types.Coordinates, zoom int) (MapHandle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, m := range w.maps {
		if m.Container == containerID {
			return "", fmt.Errorf("mapview: container %q already holds map %s", containerID, m.Handle)
		}
	}
	w.seq++
	h := MapHandle(fmt.Sprintf("map-%d", w.seq))
	w.maps = append(w.maps, &MapScene{Handle: h, Container: containerID, Center: center, Zoom: zoom})
	return h, nil
}

func (w *SceneWidget) AddTileLayer(m MapHandle, layer TileLayer) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ms, err := w.lookup(m)
	if err != nil {
		return err
	}
	ms.Tiles = append(ms.Tiles, layer)
	return nil
}

func (w *SceneWidget) AddMarker(m MapHandle, at types.Coordinates) (LayerHandle, error) {
	return w.addLayer(m, LayerScene{Kind: "marker", At: at})
}

func (w *SceneWidget) AddCircleMarker(m MapHandle, at types.Coordinates, style CircleStyle) (LayerHandle, error) {
	return w.addLayer(m, LayerScene{Kind: "circle", At: at, Style: &style})
}

func (w *SceneWidget) BindPopup(l LayerHandle, html string, open bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ms, ok := w.layerOf[l]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLayer, l)
	}
	for i := range ms.Layers {
		if ms.Layers[i].Handle == l {
			ms.Layers[i].Popup = &Popup{HTML: html, Open: open}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownLayer, l)
}

func (w *SceneWidget) OnClick(m MapHandle, action ClickAction) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ms, err := w.lookup(m)
	if err != nil {
		return err
	}
	ms.OnClick = action
	return nil
}

func (w *SceneWidget) Dispose(m MapHandle) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, ms := range w.maps {
		if ms.Handle != m {
			continue
		}
		for _, l := range ms.Layers {
			delete(w.layerOf, l.Handle)
		}
		w.maps = append(w.maps[:i], w.maps[i+1:]...)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownMap, m)
}

// Scene returns a deep copy of the live maps.
func (w *SceneWidget) Scene() Scene {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := Scene{Maps: make([]MapScene, 0, len(w.maps))}
	for _, ms := range w.maps {
		cp := *ms
		cp.Tiles = append([]TileLayer(nil), ms.Tiles...)
		cp.Layers = append([]LayerScene(nil), ms.Layers...)
		out.Maps = append(out.Maps, cp)
	}
	return out
}

// Map returns the scene of the map in containerID, if any.
func (w *SceneWidget) Map(containerID string) (MapScene, bool) {
	for _, ms := range w.Scene().Maps {
		if ms.Container == containerID {
			return ms, true
		}
	}
	return MapScene{}, false
}

func (w *SceneWidget) JSON() ([]byte, error) {
	return json.Marshal(w.Scene())
}

func (w *SceneWidget) addLayer(m MapHandle, layer LayerScene) (LayerHandle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ms, err := w.lookup(m)
	if err != nil {
		return "", err
	}
	w.seq++
	layer.Handle = LayerHandle(fmt.Sprintf("layer-%d", w.seq))
	ms.Layers = append(ms.Layers, layer)
	w.layerOf[layer.Handle] = ms
	return layer.Handle, nil
}

func (w *SceneWidget) lookup(m MapHandle) (*MapScene, error) {
	for _, ms := range w.maps {
		if ms.Handle == m {
			return ms, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownMap, m)
}
