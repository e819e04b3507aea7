package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"aqi-explorer/internal/modules/airquality/geocoding"
	"aqi-explorer/internal/modules/airquality/types"
)

var (
	ErrInvalidPostalCode  = geocoding.ErrInvalidPostalCode
	ErrEmptyQuery         = geocoding.ErrEmptyQuery
	ErrInvalidCoordinates = errors.New("latitude must be within [-90, 90] and longitude within [-180, 180]")
)

// ValidationError is the only error a lookup returns. It is raised before any
// network call and carries a message fit for the user.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Message is the text shown next to the offending input.
func (e *ValidationError) Message() string {
	switch {
	case errors.Is(e.Err, ErrInvalidPostalCode):
		return "Please enter a valid 6-digit pincode."
	case errors.Is(e.Err, ErrEmptyQuery):
		return "Please enter a location."
	case errors.Is(e.Err, ErrInvalidCoordinates):
		return "Please choose a valid location on the map."
	default:
		return e.Err.Error()
	}
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ParseCoordinates parses the decimal latitude and longitude of a map click
// or a geolocation fix.
func ParseCoordinates(lat, lon string) (types.Coordinates, error) {
	la, errLat := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	lo, errLon := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if errLat != nil || errLon != nil {
		return types.Coordinates{}, &ValidationError{Field: "coordinates", Err: ErrInvalidCoordinates}
	}
	c := types.Coordinates{Lat: la, Lon: lo}
	if !c.Valid() {
		return types.Coordinates{}, &ValidationError{Field: "coordinates", Err: ErrInvalidCoordinates}
	}
	return c, nil
}
