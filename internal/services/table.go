package services

import (
	"fmt"
	"pi360-service/internal/domain"
	"strings"
)

// FormatMiles renders a distance for display, e.g. "3.42 miles".
// Rounding is display-only; RankedFacility keeps full precision.
func FormatMiles(d *float64) string {
	if d == nil {
		return ""
	}
	return fmt.Sprintf("%.2f miles", *d)
}

// One line of the tabular locator view.
type TableRow struct {
	Rank          int
	ID            string
	Name          string
	Address       string
	Specialties   string
	Latitude      float64
	Longitude     float64
	DistanceMiles *float64
	DistanceLabel string
}

// TableRows projects the ranked list into display rows with a 1-based rank.
func TableRows(ranked []domain.RankedFacility) []TableRow {
	rows := make([]TableRow, 0, len(ranked))
	for i, r := range ranked {
		rows = append(rows, TableRow{
			Rank:          i + 1,
			ID:            r.ID,
			Name:          r.Name,
			Address:       r.Address,
			Specialties:   strings.Join(r.Specialties, ", "),
			Latitude:      r.Latitude,
			Longitude:     r.Longitude,
			DistanceMiles: r.DistanceMiles,
			DistanceLabel: FormatMiles(r.DistanceMiles),
		})
	}
	return rows
}
