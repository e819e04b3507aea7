// Package provider fetches current air pollution readings from the
// OpenWeatherMap Air Pollution API.
package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"aqi-explorer/internal/modules/airquality/classify"
	"aqi-explorer/internal/modules/airquality/owm"
	"aqi-explorer/internal/modules/airquality/types"
)

const service = "air_pollution"

// ErrUnavailable covers every way a live reading can fail to materialize.
var ErrUnavailable = errors.New("air quality reading unavailable")

type pollutionResponse struct {
	List []struct {
		Main struct {
			AQI *int `json:"aqi"`
		} `json:"main"`
		Components map[string]float64 `json:"components"`
		Dt         int64              `json:"dt"`
	} `json:"list"`
}

type Gateway struct {
	client *owm.Client
}

func New(client *owm.Client) *Gateway {
	return &Gateway{client: client}
}

// Fetch returns the current reading at c. Errors wrap ErrUnavailable, and
// also owm.ErrNoCredential when no key is configured.
func (g *Gateway) Fetch(ctx context.Context, c types.Coordinates) (types.Reading, error) {
	var resp pollutionResponse
	q := url.Values{
		"lat": {strconv.FormatFloat(c.Lat, 'f', -1, 64)},
		"lon": {strconv.FormatFloat(c.Lon, 'f', -1, 64)},
	}
	if err := g.client.GetJSON(ctx, service, "/data/2.5/air_pollution", q, &resp); err != nil {
		return types.Reading{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if len(resp.List) == 0 {
		return types.Reading{}, fmt.Errorf("%w: empty list", ErrUnavailable)
	}
	first := resp.List[0]
	if first.Main.AQI == nil {
		return types.Reading{}, fmt.Errorf("%w: missing main.aqi", ErrUnavailable)
	}
	index := *first.Main.AQI
	if !classify.InRange(index) {
		return types.Reading{}, fmt.Errorf("%w: index %d outside %d..%d", ErrUnavailable, index, classify.MinIndex, classify.MaxIndex)
	}

	pollutants := make(map[types.Pollutant]float64, len(first.Components))
	for k, v := range first.Components {
		if math.IsNaN(v) || v < 0 {
			continue
		}
		pollutants[types.Pollutant(k)] = v
	}
	for _, p := range types.PrimaryPollutants {
		if _, ok := pollutants[p]; !ok {
			return types.Reading{}, fmt.Errorf("%w: missing component %s", ErrUnavailable, p)
		}
	}

	return types.Reading{Index: index, Pollutants: pollutants}, nil
}
