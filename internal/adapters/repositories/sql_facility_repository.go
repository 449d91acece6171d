package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"pi360-service/internal/domain"
	"pi360-service/internal/platform/obs"
	"strings"
)

// SQL-backed facility snapshot implementing the FacilitySource port.
// Used when the PHP backend is not configured (offline / CLI runs).
type SqlFacilityRepository struct{ DB *sql.DB }

func NewSqlFacilityRepository(db *sql.DB) *SqlFacilityRepository {
	return &SqlFacilityRepository{DB: db}
}

// Return all facilities in seed order. NULL coordinates come back as NaN.
func (s *SqlFacilityRepository) ListFacilities(ctx context.Context) (_ []domain.Facility, err error) {
	defer obs.Time(ctx, "facilities.sql.List")(&err)

	if s.DB == nil {
		return nil, errors.New("sql facility repository: DB is nil")
	}

	query := `
	SELECT
		id,
		name,
		address,
		lat,
		lon,
		specialties
	FROM facilities
	ORDER BY position;
	`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list facilities: query facilities table: %w", err)
	}
	defer rows.Close()

	facilities := make([]domain.Facility, 0, 64)
	for rows.Next() {
		var (
			f         domain.Facility
			lat, lon  sql.NullFloat64
			specialty string
		)
		if err := rows.Scan(&f.ID, &f.Name, &f.Address, &lat, &lon, &specialty); err != nil {
			return nil, fmt.Errorf("list facilities: scan row: %w", err)
		}
		f.Latitude = coordOrNaN(lat)
		f.Longitude = coordOrNaN(lon)
		if specialty != "" {
			f.Specialties = strings.Split(specialty, ",")
		}
		facilities = append(facilities, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list facilities: row iteration: %w", err)
	}

	return facilities, nil
}

func coordOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
