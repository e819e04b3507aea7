package controller

import (
	"errors"
	"net/http"

	"aqi-explorer/internal/modules/airquality/pipeline"
	"aqi-explorer/internal/modules/airquality/types"
)

const (
	defaultLookupsLimit = 20
	maxLookupsLimit     = 100
	recentLookupsShown  = 10
)

var errMissingQuery = errors.New("one of postal, q, or lat and lon is required")

// queryParser builds a lookup from one request.
type queryParser func(r *http.Request) (types.LocationQuery, error)

func postalQuery(r *http.Request) (types.LocationQuery, error) {
	return types.PostalCodeQuery(r.URL.Query().Get("code")), nil
}

func placeQuery(r *http.Request) (types.LocationQuery, error) {
	return types.FreeTextQuery(r.URL.Query().Get("q")), nil
}

func coordinatesQuery(r *http.Request) (types.LocationQuery, error) {
	q := r.URL.Query()
	c, err := pipeline.ParseCoordinates(q.Get("lat"), q.Get("lon"))
	if err != nil {
		return types.LocationQuery{}, err
	}
	return types.CoordinatesQuery(c), nil
}

// apiQuery picks the lookup kind from whichever parameter is present:
// postal, then q, then lat/lon.
func apiQuery(r *http.Request) (types.LocationQuery, error) {
	q := r.URL.Query()
	switch {
	case q.Has("postal"):
		return types.PostalCodeQuery(q.Get("postal")), nil
	case q.Has("q"):
		return types.FreeTextQuery(q.Get("q")), nil
	case q.Has("lat") || q.Has("lon"):
		return coordinatesQuery(r)
	default:
		return types.LocationQuery{}, &pipeline.ValidationError{Field: "query", Err: errMissingQuery}
	}
}

// validationMessage returns the user-facing text of err and whether err is a
// validation error at all.
func validationMessage(err error) (field, msg string, ok bool) {
	var ve *pipeline.ValidationError
	if !errors.As(err, &ve) {
		return "", "", false
	}
	return ve.Field, ve.Message(), true
}
