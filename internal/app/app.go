// Package app builds the adapters shared by the server and the CLI from a
// loaded configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"pi360-service/internal/adapters/cache"
	"pi360-service/internal/adapters/geocode"
	"pi360-service/internal/adapters/pi360"
	"pi360-service/internal/adapters/repositories"
	"pi360-service/internal/config"
	"pi360-service/internal/platform/db"
	"pi360-service/internal/ports"
	"pi360-service/internal/session"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Components are the wired adapters. Client, Postgres and Geocoder are nil
// when not configured.
type Components struct {
	Session    *session.Session
	Client     *pi360.Client
	SQLite     *sql.DB
	Postgres   *sql.DB
	Facilities ports.FacilitySource
	Geocoder   ports.Geocoder

	closers []func() error
}

// Build opens storage, initializes schemas and wires the facility source and
// geocoder. With no PHP base URL configured, facilities come from the local
// snapshot, seeded from cfg.Storage.SeedPath when that file exists.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Components, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Components{Session: session.New(cfg.API.Token)}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	if err := ensureDir(cfg.Storage.DBPath); err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}
	c.SQLite, err = db.OpenSQLite(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}
	c.closers = append(c.closers, c.SQLite.Close)
	if err := repositories.InitSchema(c.SQLite, repositories.SQLite); err != nil {
		return nil, fmt.Errorf("build app: sqlite: %w", err)
	}

	if strings.TrimSpace(cfg.Storage.DatabaseURL) != "" {
		c.Postgres, err = db.Open(cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("build app: %w", err)
		}
		c.closers = append(c.closers, c.Postgres.Close)
		if err := repositories.InitSchema(c.Postgres, repositories.Postgres); err != nil {
			return nil, fmt.Errorf("build app: postgres: %w", err)
		}
	}

	if err := c.wireFacilities(cfg, logger); err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}

	geoCache, err := c.geocodeCache(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}

	if key := strings.TrimSpace(cfg.Geocode.ORSAPIKey); key != "" {
		g, err := geocode.NewORSGeocoder(key, geoCache,
			geocode.WithCountry(cfg.Geocode.Country),
			geocode.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("build app: %w", err)
		}
		c.Geocoder = g
	} else {
		logger.Warn("ORS_API_KEY not set; address lookups are disabled")
	}

	return c, nil
}

func (c *Components) wireFacilities(cfg *config.Config, logger *zap.Logger) error {
	if base := strings.TrimSpace(cfg.API.BaseURL); base != "" {
		client, err := pi360.NewClient(base, c.Session,
			pi360.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
			pi360.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		c.Client = client
		c.Facilities = client
		return nil
	}

	snapshot, dialect := c.SQLite, repositories.SQLite
	if c.Postgres != nil {
		snapshot, dialect = c.Postgres, repositories.Postgres
	}

	seed := strings.TrimSpace(cfg.Storage.SeedPath)
	if seed != "" {
		switch _, err := os.Stat(seed); {
		case errors.Is(err, fs.ErrNotExist):
			logger.Info("no facility seed file; using existing snapshot", zap.String("path", seed))
		case err != nil:
			return fmt.Errorf("stat seed %q: %w", seed, err)
		default:
			if err := repositories.SeedFromJSON(snapshot, dialect, seed); err != nil {
				return err
			}
		}
	}

	logger.Info("PI360_API_BASE_URL not set; serving facilities from the local snapshot")
	c.Facilities = repositories.NewSqlFacilityRepository(snapshot)
	return nil
}

// geocodeCache returns nil (no caching) for the "none" setting.
func (c *Components) geocodeCache(ctx context.Context, cfg *config.Config) (ports.GeocodeCache, error) {
	switch cfg.Geocode.Cache {
	case "sqlite":
		return cache.NewSqliteGeocodeCache(c.SQLite), nil
	case "postgres":
		if c.Postgres == nil {
			return nil, errors.New("geocode cache postgres: DATABASE_URL is not set")
		}
		return cache.NewSQLGeocodeCache(c.Postgres), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Geocode.RedisAddr})
		c.closers = append(c.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("geocode cache redis %s: %w", cfg.Geocode.RedisAddr, err)
		}
		return cache.NewRedisGeocodeCache(client, cfg.Geocode.RedisTTL), nil
	case "none", "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown geocode cache %q", cfg.Geocode.Cache)
}

// Close releases resources in reverse order of acquisition.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func ensureDir(dbPath string) error {
	if dbPath == "" || dbPath == ":memory:" || strings.HasPrefix(dbPath, "file:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create db dir for %q: %w", dbPath, err)
	}
	return nil
}
