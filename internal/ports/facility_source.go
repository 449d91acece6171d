package ports

import (
	"context"
	"pi360-service/internal/domain"
)

// Port: a boundary for retrieving the facility list shown by the locator.
type FacilitySource interface {
	// Retrieve all facilities in source order.
	ListFacilities(ctx context.Context) ([]domain.Facility, error)
}
