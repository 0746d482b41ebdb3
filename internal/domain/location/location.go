package location

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/nearandnow/cart-service/internal/domain/checkout"
)

// ErrInvalidLocation is returned when a location cannot be saved as given.
var ErrInvalidLocation = errors.New("invalid location")

// Location is a saved delivery address.
type Location struct {
	ID           string
	Label        string
	Address      string
	Latitude     float64
	Longitude    float64
	IsDefault    bool
	ContactName  string
	ContactPhone string
}

// Validate checks that a location carries usable coordinates.
func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
		return errors.Wrap(ErrInvalidLocation, "coordinates out of range")
	}
	if l.Latitude == 0 && l.Longitude == 0 {
		return errors.Wrap(ErrInvalidLocation, "coordinates required")
	}
	return nil
}

// Delivery returns the location as a checkout delivery location. The label
// falls back to the address.
func (l Location) Delivery() *checkout.Location {
	label := strings.TrimSpace(l.Label)
	if label == "" {
		label = strings.TrimSpace(l.Address)
	}
	return &checkout.Location{
		Label:     label,
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
	}
}

// Book manages the customer's saved locations.
type Book interface {
	Locations(ctx context.Context) ([]Location, error)
	SaveLocation(ctx context.Context, l Location) (*Location, error)
	UpdateLocation(ctx context.Context, l Location) error
	DeleteLocation(ctx context.Context, id string) error
}

// Find returns the location with the given id.
func Find(list []Location, id string) (Location, bool) {
	for _, l := range list {
		if l.ID == id {
			return l, true
		}
	}
	return Location{}, false
}
