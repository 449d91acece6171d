package services

import (
	"math"
	"pi360-service/internal/domain"
)

const (
	earthRadiusKm = 6371.0
	milesPerKm    = 0.621371
)

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// HaversineMiles returns the great-circle distance between two points in miles.
// Out-of-range input yields a meaningless but finite number; non-finite input yields NaN.
func HaversineMiles(p1, p2 domain.GeoPoint) float64 {
	lat1 := toRadians(p1.Latitude)
	lat2 := toRadians(p2.Latitude)
	dLat := toRadians(p2.Latitude - p1.Latitude)
	dLon := toRadians(p2.Longitude - p1.Longitude)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c * milesPerKm
}
