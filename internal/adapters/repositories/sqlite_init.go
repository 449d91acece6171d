package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"pi360-service/internal/adapters/pi360"
	"strings"
)

// Dialect selects SQL syntax differences between SQLite and postgres.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// placeholder returns the n-th (1-based) bind parameter.
func (d Dialect) placeholder(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (d Dialect) schema() []string {
	real, ts := "REAL", "TEXT"
	if d == Postgres {
		real, ts = "DOUBLE PRECISION", "TIMESTAMPTZ"
	}

	return []string{
		fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS facilities (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		lat %[1]s,
		lon %[1]s,
		specialties TEXT NOT NULL DEFAULT ''
	);
	`, real),
		fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS geocode_cache (
		address TEXT PRIMARY KEY,
		lat %[1]s NOT NULL,
		lon %[1]s NOT NULL,
		cached_at %[2]s NOT NULL
	);
	`, real, ts),
		`
	CREATE INDEX IF NOT EXISTS idx_facilities_position
	ON facilities(position);
	`,
	}
}

// Initialize the facility snapshot and geocode cache schema.
func InitSchema(db *sql.DB, d Dialect) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range d.schema() {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// nullableCoord stores non-finite coordinates as NULL.
func nullableCoord(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// Replace the facility snapshot with the contents of a JSON file shaped like
// the service_locations.php response.
func SeedFromJSON(db *sql.DB, d Dialect, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed facilities: read %q: %w", jsonPath, err)
	}

	var data pi360.LocationsResponse
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed facilities: parse json: %w", err)
	}

	seen := make(map[string]struct{}, len(data.Locations))
	for i, item := range data.Locations {
		f := item.ToFacility()
		if strings.TrimSpace(f.ID) == "" {
			return fmt.Errorf("seed facilities: item at index %d: id cannot be empty", i+1)
		}
		if _, dup := seen[f.ID]; dup {
			return fmt.Errorf("seed facilities: item at index %d: duplicate id %q", i+1, f.ID)
		}
		seen[f.ID] = struct{}{}
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed facilities: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM facilities;`); err != nil {
		return fmt.Errorf("seed facilities: clear snapshot: %w", err)
	}

	query := fmt.Sprintf(`
	INSERT INTO facilities (
		id,
		position,
		name,
		address,
		lat,
		lon,
		specialties
	)
	VALUES (%s, %s, %s, %s, %s, %s, %s);
	`, d.placeholder(1), d.placeholder(2), d.placeholder(3), d.placeholder(4),
		d.placeholder(5), d.placeholder(6), d.placeholder(7))

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("seed facilities: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, item := range data.Locations {
		f := item.ToFacility()
		_, err := stmt.Exec(
			f.ID, i, f.Name, f.Address,
			nullableCoord(f.Latitude), nullableCoord(f.Longitude),
			strings.Join(f.Specialties, ","),
		)
		if err != nil {
			return fmt.Errorf("seed facilities: insert id=%q: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed facilities: commit tx: %w", err)
	}

	return nil
}
