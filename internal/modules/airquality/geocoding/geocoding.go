// Package geocoding turns postal codes, place names and coordinates into a
// ResolvedLocation using the OpenWeatherMap Geocoding API v1.0.
package geocoding

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"aqi-explorer/internal/modules/airquality/owm"
	"aqi-explorer/internal/modules/airquality/types"
)

const service = "geocoding"

var (
	ErrInvalidPostalCode = errors.New("postal code must be exactly 6 digits")
	ErrEmptyQuery        = errors.New("location query is empty")
	ErrNotFound          = errors.New("location not found")
	ErrNoCredential      = owm.ErrNoCredential
)

var postalCodeRe = regexp.MustCompile(`^\d{6}$`)

// ValidPostalCode reports whether code is exactly six ASCII digits.
func ValidPostalCode(code string) bool {
	return postalCodeRe.MatchString(code)
}

type zipResponse struct {
	Name    string   `json:"name"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
	Country string   `json:"country"`
}

type placeResponse struct {
	Name    string   `json:"name"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
	Country string   `json:"country"`
	State   string   `json:"state"`
}

type Gateway struct {
	client  *owm.Client
	country string
}

// New returns a gateway that scopes postal codes to country (ISO 3166 alpha-2).
func New(client *owm.Client, country string) *Gateway {
	return &Gateway{client: client, country: strings.ToUpper(strings.TrimSpace(country))}
}

// ByPostalCode resolves a six-digit postal code. The display name is
// "{place}, {code}".
func (g *Gateway) ByPostalCode(ctx context.Context, code string) (types.ResolvedLocation, error) {
	if !ValidPostalCode(code) {
		return types.ResolvedLocation{}, ErrInvalidPostalCode
	}
	var resp zipResponse
	q := url.Values{"zip": {code + "," + g.country}}
	if err := g.client.GetJSON(ctx, service, "/geo/1.0/zip", q, &resp); err != nil {
		return types.ResolvedLocation{}, classifyErr(err)
	}
	if resp.Lat == nil || resp.Lon == nil {
		return types.ResolvedLocation{}, fmt.Errorf("%w: zip %s: response missing coordinates", ErrNotFound, code)
	}
	c := types.Coordinates{Lat: *resp.Lat, Lon: *resp.Lon}
	if !c.Valid() {
		return types.ResolvedLocation{}, fmt.Errorf("%w: zip %s: coordinates out of range", ErrNotFound, code)
	}
	name := code
	if resp.Name != "" {
		name = resp.Name + ", " + code
	}
	return types.NewResolvedLocation(c, name), nil
}

// ByFreeText resolves a place name using the first direct-geocoding match.
// The display name is "{place}, {country}".
func (g *Gateway) ByFreeText(ctx context.Context, text string) (types.ResolvedLocation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.ResolvedLocation{}, ErrEmptyQuery
	}
	var resp []placeResponse
	q := url.Values{"q": {text}, "limit": {"1"}}
	if err := g.client.GetJSON(ctx, service, "/geo/1.0/direct", q, &resp); err != nil {
		return types.ResolvedLocation{}, classifyErr(err)
	}
	if len(resp) == 0 {
		return types.ResolvedLocation{}, fmt.Errorf("%w: %q", ErrNotFound, text)
	}
	first := resp[0]
	if first.Lat == nil || first.Lon == nil {
		return types.ResolvedLocation{}, fmt.Errorf("%w: %q: response missing coordinates", ErrNotFound, text)
	}
	c := types.Coordinates{Lat: *first.Lat, Lon: *first.Lon}
	if !c.Valid() {
		return types.ResolvedLocation{}, fmt.Errorf("%w: %q: coordinates out of range", ErrNotFound, text)
	}
	return types.NewResolvedLocation(c, joinName(orUnknown(first.Name), orUnknown(first.Country))), nil
}

// Reverse names a coordinate pair. It never fails: any upstream problem
// yields the formatted coordinates as the display name. The returned error
// only explains why the name was degraded and may be ignored.
func (g *Gateway) Reverse(ctx context.Context, c types.Coordinates) (types.ResolvedLocation, error) {
	fallback := types.NewResolvedLocation(c, "")

	var resp []placeResponse
	q := url.Values{
		"lat":   {strconv.FormatFloat(c.Lat, 'f', -1, 64)},
		"lon":   {strconv.FormatFloat(c.Lon, 'f', -1, 64)},
		"limit": {"1"},
	}
	if err := g.client.GetJSON(ctx, service, "/geo/1.0/reverse", q, &resp); err != nil {
		return fallback, classifyErr(err)
	}
	if len(resp) == 0 {
		return fallback, fmt.Errorf("%w: no place at %s", ErrNotFound, c)
	}
	return types.NewResolvedLocation(c, joinName(orUnknown(resp[0].Name), orUnknown(resp[0].Country))), nil
}

func classifyErr(err error) error {
	if errors.Is(err, owm.ErrNoCredential) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNotFound, err)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}

func joinName(place, country string) string {
	return place + ", " + country
}
