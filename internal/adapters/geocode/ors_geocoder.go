package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"pi360-service/internal/domain"
	"pi360-service/internal/platform/httpx"
	"pi360-service/internal/platform/obs"
	"pi360-service/internal/ports"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultORSBaseURL = "https://api.openrouteservice.org"

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// ORSGeocoder resolves addresses through OpenRouteService (/geocode/search),
// consulting a persistent cache first. Cache write failures are logged, not returned.
//
// The geocoder is safe for concurrent use.
type ORSGeocoder struct {
	retrier *httpx.Retrier
	apiKey  string
	baseURL string
	country string
	cache   ports.GeocodeCache
	logger  *zap.Logger
}

type Option func(*ORSGeocoder)

func WithBaseURL(u string) Option {
	return func(g *ORSGeocoder) { g.baseURL = strings.TrimRight(u, "/") }
}

func WithCountry(c string) Option { return func(g *ORSGeocoder) { g.country = c } }

func WithHTTPClient(hc *http.Client) Option {
	return func(g *ORSGeocoder) { g.retrier.Client = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(g *ORSGeocoder) {
		g.logger = l
		g.retrier.Logger = l
	}
}

func NewORSGeocoder(apiKey string, cache ports.GeocodeCache, opts ...Option) (*ORSGeocoder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("ORS api key is empty")
	}

	g := &ORSGeocoder{
		retrier: httpx.NewRetrier(&http.Client{Timeout: 10 * time.Second}, 4, 200*time.Millisecond, nil),
		apiKey:  apiKey,
		baseURL: defaultORSBaseURL,
		country: "US",
		cache:   cache,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(g)
	}

	return g, nil
}

// Normalize collapses whitespace so equivalent addresses share a cache key.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (g *ORSGeocoder) Geocode(ctx context.Context, address string) (_ domain.GeoPoint, err error) {
	defer obs.Time(ctx, "ors.Geocode")(&err)

	norm := Normalize(address)
	if norm == "" {
		return domain.GeoPoint{}, errors.New("geocode: address must be non-empty")
	}

	if g.cache != nil {
		hits, err := g.cache.GetMany(ctx, []string{norm})
		if err != nil {
			g.logger.Warn("geocode cache read failed", zap.Error(err))
		} else if p, ok := hits[norm]; ok {
			return p, nil
		}
	}

	p, err := g.fetch(ctx, norm)
	if err != nil {
		return domain.GeoPoint{}, err
	}

	if g.cache != nil {
		if err := g.cache.PutMany(ctx, map[string]domain.GeoPoint{norm: p}); err != nil {
			g.logger.Warn("geocode cache write failed", zap.Error(err))
		}
	}

	return p, nil
}

func (g *ORSGeocoder) fetch(ctx context.Context, norm string) (domain.GeoPoint, error) {
	endpoint := g.baseURL + "/geocode/search"

	resp, err := g.retrier.Do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", g.apiKey)
		req.Header.Set("Accept", "application/json")

		q := req.URL.Query()
		q.Set("text", norm)
		if g.country != "" {
			q.Set("boundary.country", g.country)
		}
		q.Set("size", "1")
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("geocode %q: execute request: %w", norm, err)
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.GeoPoint{}, fmt.Errorf("geocode %q: decode response: %w", norm, err)
	}

	if len(decoded.Features) == 0 {
		return domain.GeoPoint{}, fmt.Errorf("geocode %q: %w", norm, domain.ErrAddressNotFound)
	}

	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) != 2 {
		return domain.GeoPoint{}, fmt.Errorf("geocode %q: invalid coordinate format", norm)
	}

	// ORS returns [lon, lat].
	p := domain.GeoPoint{Latitude: coords[1], Longitude: coords[0]}
	if err := p.Validate(); err != nil {
		return domain.GeoPoint{}, fmt.Errorf("geocode %q: %w", norm, err)
	}

	return p, nil
}
