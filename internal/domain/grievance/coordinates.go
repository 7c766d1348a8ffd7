package grievance

import (
	"fmt"
	"strings"

	"github.com/grievancenet/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var (
	minLatitude  = decimal.NewFromInt(-90)
	maxLatitude  = decimal.NewFromInt(90)
	minLongitude = decimal.NewFromInt(-180)
	maxLongitude = decimal.NewFromInt(180)
)

// Coordinates is a WGS84 point as reported by the citizen's device
type Coordinates struct {
	Latitude  decimal.Decimal
	Longitude decimal.Decimal
}

// ParseCoordinates parses optional latitude/longitude strings.
// Both blank means no coordinates and returns (nil, nil). Supplying only one,
// a non-numeric value or an out-of-range value is a validation error.
func ParseCoordinates(latitude, longitude string) (*Coordinates, error) {
	latitude = strings.TrimSpace(latitude)
	longitude = strings.TrimSpace(longitude)

	if latitude == "" && longitude == "" {
		return nil, nil
	}
	if latitude == "" || longitude == "" {
		return nil, shared.NewValidationError("Latitude and longitude must be provided together")
	}

	lat, err := decimal.NewFromString(latitude)
	if err != nil {
		return nil, shared.NewValidationError("Latitude must be a number")
	}
	lng, err := decimal.NewFromString(longitude)
	if err != nil {
		return nil, shared.NewValidationError("Longitude must be a number")
	}

	return NewCoordinates(lat, lng)
}

// NewCoordinates validates the ranges of an already numeric point
func NewCoordinates(lat, lng decimal.Decimal) (*Coordinates, error) {
	if lat.LessThan(minLatitude) || lat.GreaterThan(maxLatitude) {
		return nil, shared.NewValidationError("Latitude must be between -90 and 90")
	}
	if lng.LessThan(minLongitude) || lng.GreaterThan(maxLongitude) {
		return nil, shared.NewValidationError("Longitude must be between -180 and 180")
	}
	return &Coordinates{Latitude: lat, Longitude: lng}, nil
}

// LatitudeString returns the latitude without trailing zeros
func (c *Coordinates) LatitudeString() string {
	if c == nil {
		return ""
	}
	return c.Latitude.String()
}

// LongitudeString returns the longitude without trailing zeros
func (c *Coordinates) LongitudeString() string {
	if c == nil {
		return ""
	}
	return c.Longitude.String()
}

// MapsURL returns a Google Maps link for the point
func (c *Coordinates) MapsURL() string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("https://www.google.com/maps?q=%s,%s", c.Latitude.String(), c.Longitude.String())
}
