package domain

// A service location as returned by the facility source.
// Facilities are read-only input to the locator; ranking never mutates them.
type Facility struct {
	ID          string
	Name        string
	Address     string
	Latitude    float64
	Longitude   float64
	Specialties []string
}

// Point returns the facility coordinates as a GeoPoint.
func (f Facility) Point() GeoPoint {
	return GeoPoint{Latitude: f.Latitude, Longitude: f.Longitude}
}

// A facility enriched with its distance from the reference point.
// DistanceMiles is nil when no reference point was supplied (unranked view).
type RankedFacility struct {
	Facility
	DistanceMiles *float64
}

// Data-quality finding for a facility whose coordinates cannot be ranked.
type CoordinateIssue struct {
	FacilityID string
	Name       string
	Reason     string
}
