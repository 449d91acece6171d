package ports

import (
	"context"
	"pi360-service/internal/domain"
)

// Contract for resolving a free-form address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (domain.GeoPoint, error)
}

// Persistent address -> coordinate cache consulted before the geocoder.
type GeocodeCache interface {
	// Return cached points for the given addresses. Misses are absent from the map.
	GetMany(ctx context.Context, addresses []string) (map[string]domain.GeoPoint, error)
	// Store address -> point mappings.
	PutMany(ctx context.Context, results map[string]domain.GeoPoint) error
}
