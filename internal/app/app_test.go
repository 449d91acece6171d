package app

import (
	"context"
	"os"
	"path/filepath"
	"pi360-service/internal/adapters/cache"
	"pi360-service/internal/adapters/geocode"
	"pi360-service/internal/adapters/pi360"
	"pi360-service/internal/adapters/repositories"
	"pi360-service/internal/config"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.DBPath = filepath.Join(dir, "db", "app.db")
	cfg.Storage.SeedPath = filepath.Join(dir, "missing.json")
	return cfg
}

func TestBuild_OfflineSnapshot(t *testing.T) {
	cfg := testConfig(t)
	seed := filepath.Join(t.TempDir(), "locations.json")
	require.NoError(t, os.WriteFile(seed, []byte(`{"locations":[{"id":"1","name":"A","address":"x","lat":"1.5","lng":"2.5"}]}`), 0o600))
	cfg.Storage.SeedPath = seed

	c, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.Client)
	assert.Nil(t, c.Geocoder)
	assert.IsType(t, &repositories.SqlFacilityRepository{}, c.Facilities)

	fs, err := c.Facilities.ListFacilities(context.Background())
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, 1.5, fs[0].Latitude)
}

func TestBuild_RemoteWithRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.API.BaseURL = "https://pi360.example.com/lawyer/api/"
	cfg.API.Token = "opaque"
	cfg.Geocode.Cache = "redis"
	cfg.Geocode.RedisAddr = mr.Addr()
	cfg.Geocode.ORSAPIKey = "key"

	c, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer c.Close()

	assert.IsType(t, &pi360.Client{}, c.Facilities)
	assert.IsType(t, &geocode.ORSGeocoder{}, c.Geocoder)
	assert.True(t, c.Session.IsAuthenticated(time.Now()))

	gc, err := c.geocodeCache(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &cache.RedisGeocodeCache{}, gc)
}

func TestBuild_PostgresCacheWithoutDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.Geocode.Cache = "postgres"

	_, err := Build(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestBuild_UnreachableRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.Geocode.Cache = "redis"
	cfg.Geocode.RedisAddr = "127.0.0.1:1"

	_, err := Build(context.Background(), cfg, nil)
	assert.Error(t, err)
}
