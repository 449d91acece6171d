package pi360

import (
	"context"
	"fmt"
	"net/http"
	"pi360-service/internal/domain"
	"strings"
)

const serviceLocationsEndpoint = "service_locations.php"

// LocationPayload is one entry of the service_locations.php response.
type LocationPayload struct {
	ID           flexString `json:"id"`
	Name         string     `json:"name"`
	Address      string     `json:"address"`
	Lat          flexFloat  `json:"lat"`
	Lng          flexFloat  `json:"lng"`
	Specialities flexList   `json:"specialities"`
}

type LocationsResponse struct {
	Locations []LocationPayload `json:"locations"`
}

// ToFacility converts the wire shape into a domain facility.
func (p LocationPayload) ToFacility() domain.Facility {
	return domain.Facility{
		ID:          string(p.ID),
		Name:        strings.TrimSpace(p.Name),
		Address:     strings.TrimSpace(p.Address),
		Latitude:    float64(p.Lat),
		Longitude:   float64(p.Lng),
		Specialties: []string(p.Specialities),
	}
}

// ListFacilities fetches service_locations.php in source order.
func (c *Client) ListFacilities(ctx context.Context) ([]domain.Facility, error) {
	var res LocationsResponse
	if err := c.Do(ctx, http.MethodGet, serviceLocationsEndpoint, nil, &res); err != nil {
		return nil, fmt.Errorf("list facilities: %w", err)
	}

	out := make([]domain.Facility, 0, len(res.Locations))
	for _, l := range res.Locations {
		out = append(out, l.ToFacility())
	}
	return out, nil
}
