package types

import (
	"fmt"
	"math"
	"time"
)

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether c lies on the globe.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// String is the display name used when no place name is known.
func (c Coordinates) String() string {
	return fmt.Sprintf("%.4f, %.4f", c.Lat, c.Lon)
}

type QueryKind string

const (
	QueryPostalCode  QueryKind = "postal"
	QueryFreeText    QueryKind = "place"
	QueryCoordinates QueryKind = "coordinates"
)

// LocationQuery is one user intent. Exactly one payload field is meaningful,
// selected by Kind.
type LocationQuery struct {
	Kind        QueryKind   `json:"kind"`
	PostalCode  string      `json:"postalCode,omitempty"`
	Text        string      `json:"text,omitempty"`
	Coordinates Coordinates `json:"coordinates"`
}

func PostalCodeQuery(code string) LocationQuery {
	return LocationQuery{Kind: QueryPostalCode, PostalCode: code}
}

func FreeTextQuery(text string) LocationQuery {
	return LocationQuery{Kind: QueryFreeText, Text: text}
}

func CoordinatesQuery(c Coordinates) LocationQuery {
	return LocationQuery{Kind: QueryCoordinates, Coordinates: c}
}

// Label is what the user typed or clicked, used as the display name when
// nothing better can be resolved.
func (q LocationQuery) Label() string {
	switch q.Kind {
	case QueryPostalCode:
		return q.PostalCode
	case QueryFreeText:
		return q.Text
	default:
		return q.Coordinates.String()
	}
}

type ResolvedLocation struct {
	Coordinates Coordinates `json:"coordinates"`
	DisplayName string      `json:"displayName"`
}

// NewResolvedLocation fills an empty display name with the formatted coordinates.
func NewResolvedLocation(c Coordinates, name string) ResolvedLocation {
	if name == "" {
		name = c.String()
	}
	return ResolvedLocation{Coordinates: c, DisplayName: name}
}

type Pollutant string

const (
	PM25 Pollutant = "pm2_5"
	PM10 Pollutant = "pm10"
	O3   Pollutant = "o3"
	NO2  Pollutant = "no2"
	CO   Pollutant = "co"
	NO   Pollutant = "no"
	SO2  Pollutant = "so2"
	NH3  Pollutant = "nh3"
)

// PrimaryPollutants are the four concentrations every reading carries and the
// results panel always shows.
var PrimaryPollutants = []Pollutant{PM25, PM10, O3, NO2}

// Label is the human symbol for the pollutant.
func (p Pollutant) Label() string {
	switch p {
	case PM25:
		return "PM2.5"
	case PM10:
		return "PM10"
	case O3:
		return "O₃"
	case NO2:
		return "NO₂"
	case CO:
		return "CO"
	case NO:
		return "NO"
	case SO2:
		return "SO₂"
	case NH3:
		return "NH₃"
	default:
		return string(p)
	}
}

// Reading is one air-quality sample. Concentrations are in µg/m³.
type Reading struct {
	Index      int                   `json:"index"`
	Pollutants map[Pollutant]float64 `json:"pollutants"`
	Synthetic  bool                  `json:"synthetic"`
}

// MapPoint is a neighbouring sample drawn around a result on the map.
type MapPoint struct {
	Coordinates Coordinates `json:"coordinates"`
	Index       int         `json:"index"`
}

// Lookup is one stored lookup from the history table.
type Lookup struct {
	ID          string                `json:"id"`
	Kind        QueryKind             `json:"kind"`
	Query       string                `json:"query"`
	DisplayName string                `json:"displayName"`
	Coordinates Coordinates           `json:"coordinates"`
	Index       int                   `json:"index"`
	Status      string                `json:"status"`
	Synthetic   bool                  `json:"synthetic"`
	Reason      string                `json:"reason,omitempty"`
	Pollutants  map[Pollutant]float64 `json:"pollutants"`
	CreatedAt   time.Time             `json:"createdAt"`
}
