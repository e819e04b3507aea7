// Package synthetic produces plausible, clearly-flagged readings and
// coordinates when live data is unavailable.
package synthetic

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"aqi-explorer/internal/modules/airquality/classify"
	"aqi-explorer/internal/modules/airquality/types"
)

const (
	// JitterSpan is the full width, in degrees, of the box synthetic
	// coordinates are drawn from around a center.
	JitterSpan = 0.1

	ringMinRadius  = 0.05
	ringRadiusSpan = 0.1
)

// maxConcentration bounds each primary pollutant, in µg/m³.
var maxConcentration = map[types.Pollutant]float64{
	types.PM25: 100,
	types.PM10: 150,
	types.O3:   200,
	types.NO2:  100,
}

type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a generator drawing from rng. A nil rng is seeded from the clock.
func New(rng *rand.Rand) *Generator {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &Generator{rng: rng}
}

// NewSeeded returns a reproducible generator.
func NewSeeded(seed uint64) *Generator {
	return New(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Reading returns a random reading with an index in 1..5 and the four primary
// pollutants rounded to one decimal.
func (g *Generator) Reading() types.Reading {
	g.mu.Lock()
	defer g.mu.Unlock()

	pollutants := make(map[types.Pollutant]float64, len(types.PrimaryPollutants))
	for _, p := range types.PrimaryPollutants {
		pollutants[p] = round1(g.rng.Float64() * maxConcentration[p])
	}
	return types.Reading{
		Index:      g.index(),
		Pollutants: pollutants,
		Synthetic:  true,
	}
}

// Jitter returns a point within ±JitterSpan/2 of center on each axis, kept on
// the globe.
func (g *Generator) Jitter(center types.Coordinates) types.Coordinates {
	g.mu.Lock()
	defer g.mu.Unlock()

	return types.Coordinates{
		Lat: clamp(center.Lat+(g.rng.Float64()-0.5)*JitterSpan, -90, 90),
		Lon: clamp(center.Lon+(g.rng.Float64()-0.5)*JitterSpan, -180, 180),
	}
}

// Ring returns n points evenly spaced by angle around center, each at a random
// distance of 0.05 to 0.15 degrees with a random 1..5 index.
func (g *Generator) Ring(center types.Coordinates, n int) []types.MapPoint {
	if n <= 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	points := make([]types.MapPoint, n)
	for i := range points {
		angle := float64(i) / float64(n) * 2 * math.Pi
		distance := ringMinRadius + g.rng.Float64()*ringRadiusSpan
		points[i] = types.MapPoint{
			Coordinates: types.Coordinates{
				Lat: clamp(center.Lat+distance*math.Cos(angle), -90, 90),
				Lon: clamp(center.Lon+distance*math.Sin(angle), -180, 180),
			},
			Index: g.index(),
		}
	}
	return points
}

func (g *Generator) index() int {
	return classify.MinIndex + g.rng.IntN(classify.MaxIndex-classify.MinIndex+1)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
