package services

import (
	"context"
	"errors"
	"math"
	"pi360-service/internal/domain"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	facilities []domain.Facility
	err        error
}

func (f *fakeSource) ListFacilities(context.Context) ([]domain.Facility, error) {
	return f.facilities, f.err
}

type fakeGeocoder struct {
	points map[string]domain.GeoPoint
	calls  atomic.Int32
}

func (g *fakeGeocoder) Geocode(_ context.Context, address string) (domain.GeoPoint, error) {
	g.calls.Add(1)
	p, ok := g.points[address]
	if !ok {
		return domain.GeoPoint{}, domain.ErrAddressNotFound
	}
	return p, nil
}

func TestLocator_GeocodesAddress(t *testing.T) {
	src := &fakeSource{facilities: []domain.Facility{north("far", 40), north("near", 2), north("mid", 6)}}
	geo := &fakeGeocoder{points: map[string]domain.GeoPoint{"100 Main St, Springfield": reference}}

	l := NewLocator(src, geo, nil)
	res, err := l.Locate(context.Background(), LocateRequest{
		Address:    "  100 Main St,   Springfield ",
		Policy:     policy(10, 0),
		SelectedID: "far",
	})
	require.NoError(t, err)

	require.NotNil(t, res.Reference)
	assert.Equal(t, reference, *res.Reference)
	assert.Equal(t, []string{"near", "mid"}, ids(res.Facilities))
	// "far" fell outside the radius, so the selection is cleared.
	assert.Empty(t, res.SelectedID)
	assert.Empty(t, res.Issues)
}

func TestLocator_ExplicitPointSkipsGeocoder(t *testing.T) {
	src := &fakeSource{facilities: []domain.Facility{north("a", 1)}}
	geo := &fakeGeocoder{}

	p := reference
	res, err := NewLocator(src, geo, nil).Locate(context.Background(), LocateRequest{
		Point:      &p,
		Address:    "ignored",
		Policy:     policy(5, 0),
		SelectedID: "a",
	})
	require.NoError(t, err)

	assert.Equal(t, int32(0), geo.calls.Load())
	assert.Equal(t, "a", res.SelectedID)
	require.Len(t, res.Facilities, 1)
	assert.NotNil(t, res.Facilities[0].DistanceMiles)
}

func TestLocator_NoReferenceIsUnranked(t *testing.T) {
	fs := []domain.Facility{north("b", 9), north("a", 1)}
	res, err := NewLocator(&fakeSource{facilities: fs}, nil, nil).Locate(context.Background(), LocateRequest{
		// The policy is ignored without a reference point.
		Policy: domain.ProximityPolicy{},
	})
	require.NoError(t, err)

	assert.Nil(t, res.Reference)
	assert.Equal(t, []string{"b", "a"}, ids(res.Facilities))
	for _, r := range res.Facilities {
		assert.Nil(t, r.DistanceMiles)
	}
}

func TestLocator_ReportsCoordinateIssues(t *testing.T) {
	fs := []domain.Facility{north("ok", 1), {ID: "bad", Name: "Bad", Latitude: math.NaN(), Longitude: 1}}
	p := reference

	res, err := NewLocator(&fakeSource{facilities: fs}, nil, nil).Locate(context.Background(), LocateRequest{
		Point:  &p,
		Policy: policy(10, 0),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"ok"}, ids(res.Facilities))
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "bad", res.Issues[0].FacilityID)
}

func TestLocator_Errors(t *testing.T) {
	p := reference
	badPoint := domain.GeoPoint{Latitude: 91, Longitude: 0}
	fetchErr := errors.New("backend down")

	tests := []struct {
		name   string
		source *fakeSource
		geo    *fakeGeocoder
		req    LocateRequest
		is     error
	}{
		{
			name:   "fetch failure",
			source: &fakeSource{err: fetchErr},
			req:    LocateRequest{Point: &p, Policy: policy(10, 0)},
			is:     fetchErr,
		},
		{
			name:   "address not found",
			source: &fakeSource{},
			geo:    &fakeGeocoder{},
			req:    LocateRequest{Address: "nowhere", Policy: policy(10, 0)},
			is:     domain.ErrAddressNotFound,
		},
		{
			name:   "invalid point",
			source: &fakeSource{},
			req:    LocateRequest{Point: &badPoint, Policy: policy(10, 0)},
			is:     domain.ErrInvalidPoint,
		},
		{
			name:   "invalid policy",
			source: &fakeSource{},
			req:    LocateRequest{Point: &p, Policy: policy(0, 0)},
			is:     domain.ErrInvalidPolicy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLocator(tt.source, nil, nil)
			if tt.geo != nil {
				l.Geocoder = tt.geo
			}
			res, err := l.Locate(context.Background(), tt.req)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.is)
		})
	}
}

func TestLocator_AddressWithoutGeocoder(t *testing.T) {
	_, err := NewLocator(&fakeSource{}, nil, nil).Locate(context.Background(), LocateRequest{
		Address: "1 Main St",
		Policy:  policy(10, 0),
	})
	assert.Error(t, err)
}
