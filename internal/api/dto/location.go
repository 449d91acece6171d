package dto

type PointResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Coordinates that failed to parse are sent as null.
type LocationResponse struct {
	Rank          int      `json:"rank"`
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Address       string   `json:"address"`
	Specialties   []string `json:"specialties"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	DistanceMiles *float64 `json:"distance_miles"`
	DistanceLabel string   `json:"distance_label,omitempty"`
}

type CoordinateIssueResponse struct {
	FacilityID string `json:"facility_id"`
	Name       string `json:"name"`
	Reason     string `json:"reason"`
}

type ListLocationsResponse struct {
	Reference  *PointResponse            `json:"reference"`
	Locations  []LocationResponse        `json:"locations"`
	SelectedID string                    `json:"selected_id,omitempty"`
	Issues     []CoordinateIssueResponse `json:"issues"`
}
