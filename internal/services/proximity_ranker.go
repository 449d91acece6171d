package services

import (
	"pi360-service/internal/domain"
	"slices"
)

// RankFacilities turns a facility list into the ranked view shared by the map and the table.
//
// With no reference point every facility is returned in source order with a nil
// distance and the policy is ignored. Otherwise facilities farther than
// policy.RadiusMiles are dropped, the rest are stably sorted by distance and
// truncated to policy.MaxResults. A NaN distance never satisfies the radius
// check, so facilities with malformed coordinates fall out of the ranked view.
//
// The function is pure: facilities is not modified.
func RankFacilities(
	facilities []domain.Facility,
	reference *domain.GeoPoint,
	policy domain.ProximityPolicy,
) []domain.RankedFacility {
	if reference == nil {
		out := make([]domain.RankedFacility, 0, len(facilities))
		for _, f := range facilities {
			out = append(out, domain.RankedFacility{Facility: copyFacility(f)})
		}
		return out
	}

	out := make([]domain.RankedFacility, 0, len(facilities))
	for _, f := range facilities {
		d := HaversineMiles(*reference, f.Point())
		if !(d <= policy.RadiusMiles) {
			continue
		}
		out = append(out, domain.RankedFacility{Facility: copyFacility(f), DistanceMiles: &d})
	}

	// Equal distances keep source order.
	slices.SortStableFunc(out, func(a, b domain.RankedFacility) int {
		da, db := *a.DistanceMiles, *b.DistanceMiles
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		}
		return 0
	})

	if policy.MaxResults != nil && len(out) > *policy.MaxResults {
		out = out[:max(*policy.MaxResults, 0)]
	}

	return out
}

func copyFacility(f domain.Facility) domain.Facility {
	f.Specialties = slices.Clone(f.Specialties)
	return f
}
