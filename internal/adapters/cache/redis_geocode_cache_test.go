package cache

import (
	"context"
	"pi360-service/internal/domain"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T, ttl time.Duration) (*RedisGeocodeCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisGeocodeCache(client, ttl), mr
}

func TestRedisGeocodeCache_RoundTrip(t *testing.T) {
	c, mr := newRedisCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.PutMany(ctx, map[string]domain.GeoPoint{
		"1 Main St": {Latitude: 39.9, Longitude: -98.6},
	}))

	got, err := c.GetMany(ctx, []string{"1 Main St", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.GeoPoint{"1 Main St": {Latitude: 39.9, Longitude: -98.6}}, got)

	assert.Equal(t, time.Hour, mr.TTL(redisGeocodePrefix+"1 Main St"))
}

func TestRedisGeocodeCache_Expiry(t *testing.T) {
	c, mr := newRedisCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.PutMany(ctx, map[string]domain.GeoPoint{"a": {Latitude: 1, Longitude: 2}}))
	mr.FastForward(2 * time.Minute)

	got, err := c.GetMany(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisGeocodeCache_CorruptValue(t *testing.T) {
	c, mr := newRedisCache(t, 0)
	require.NoError(t, mr.Set(redisGeocodePrefix+"bad", "{not json"))

	_, err := c.GetMany(context.Background(), []string{"bad"})
	assert.Error(t, err)
}
