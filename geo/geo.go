// Package geo provides the geolocation readings used by the recorder.
package geo

import (
	"context"
	"errors"

	"github.com/MaldivaSky/mercadinhosys-sub003/models"
)

var ErrUnavailable = errors.New("geolocation unavailable")

type Locator interface {
	Locate(ctx context.Context) (models.Location, error)
}

// Static answers with the store's fixed coordinates. Terminals bolted to the
// counter have no GPS; the store address is what the API expects.
type Static struct {
	Location models.Location
}

func (s Static) Locate(ctx context.Context) (models.Location, error) {
	if err := ctx.Err(); err != nil {
		return models.Location{}, err
	}
	return s.Location, nil
}

// Unavailable is used when no coordinates are configured.
type Unavailable struct{}

func (Unavailable) Locate(ctx context.Context) (models.Location, error) {
	return models.Location{}, ErrUnavailable
}

// FromConfig returns Static when both coordinates are set, Unavailable otherwise.
func FromConfig(lat, lng *float64) Locator {
	if lat == nil || lng == nil {
		return Unavailable{}
	}
	return Static{Location: models.Location{Latitude: *lat, Longitude: *lng}}
}
