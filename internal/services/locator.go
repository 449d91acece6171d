package services

import (
	"context"
	"errors"
	"fmt"
	"pi360-service/internal/domain"
	"pi360-service/internal/platform/obs"
	"pi360-service/internal/ports"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type LocateRequest struct {
	// Explicit reference point. Takes precedence over Address.
	Point *domain.GeoPoint
	// Free-form address geocoded when Point is nil.
	Address    string
	Policy     domain.ProximityPolicy
	SelectedID string
}

type LocateResult struct {
	Reference  *domain.GeoPoint
	Facilities []domain.RankedFacility
	SelectedID string
	Issues     []domain.CoordinateIssue
}

// Locator fetches facilities and resolves the reference point, then ranks.
// Both lookups run concurrently; each call is independent so the caller's
// latest request wins.
type Locator struct {
	Source   ports.FacilitySource
	Geocoder ports.Geocoder
	Logger   *zap.Logger
}

func NewLocator(source ports.FacilitySource, geocoder ports.Geocoder, logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{Source: source, Geocoder: geocoder, Logger: logger}
}

func (l *Locator) Locate(ctx context.Context, req LocateRequest) (_ *LocateResult, err error) {
	defer obs.Time(ctx, "locator.Locate")(&err)

	if l.Source == nil {
		return nil, errors.New("locate: facility source is nil")
	}

	var reference *domain.GeoPoint
	address := strings.Join(strings.Fields(req.Address), " ")

	switch {
	case req.Point != nil:
		if err := req.Point.Validate(); err != nil {
			return nil, fmt.Errorf("locate: reference point: %w", err)
		}
		p := *req.Point
		reference = &p
	case address != "" && l.Geocoder == nil:
		return nil, errors.New("locate: address given but no geocoder configured")
	}

	if reference != nil || address != "" {
		if err := req.Policy.Validate(); err != nil {
			return nil, fmt.Errorf("locate: %w", err)
		}
	}

	var facilities []domain.Facility
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fs, err := l.Source.ListFacilities(gctx)
		if err != nil {
			return fmt.Errorf("locate: list facilities: %w", err)
		}
		facilities = fs
		return nil
	})

	if reference == nil && address != "" {
		g.Go(func() error {
			p, err := l.Geocoder.Geocode(gctx, address)
			if err != nil {
				return fmt.Errorf("locate: geocode %q: %w", address, err)
			}
			reference = &p
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	issues := AuditCoordinates(facilities)
	for _, is := range issues {
		l.Logger.Warn("facility has unusable coordinates",
			zap.String("facility_id", is.FacilityID),
			zap.String("name", is.Name),
			zap.String("reason", is.Reason),
		)
	}

	ranked := RankFacilities(facilities, reference, req.Policy)

	return &LocateResult{
		Reference:  reference,
		Facilities: ranked,
		SelectedID: ReconcileSelection(req.SelectedID, ranked),
		Issues:     issues,
	}, nil
}
