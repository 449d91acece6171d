package domain

import (
	"fmt"
	"math"
)

// Caller-owned filtering policy for the locator.
// A nil MaxResults means the ranked list is not truncated.
type ProximityPolicy struct {
	RadiusMiles float64
	MaxResults  *int
}

func NewProximityPolicy(radiusMiles float64, maxResults int) ProximityPolicy {
	p := ProximityPolicy{RadiusMiles: radiusMiles}
	if maxResults > 0 {
		p.MaxResults = &maxResults
	}
	return p
}

// Unbounded reports whether the policy has no result cap.
func (p ProximityPolicy) Unbounded() bool {
	return p.MaxResults == nil
}

func (p ProximityPolicy) Validate() error {
	if math.IsNaN(p.RadiusMiles) || p.RadiusMiles <= 0 {
		return fmt.Errorf("%w: radius must be > 0, got %v", ErrInvalidPolicy, p.RadiusMiles)
	}
	if p.MaxResults != nil && *p.MaxResults <= 0 {
		return fmt.Errorf("%w: max results must be > 0, got %d", ErrInvalidPolicy, *p.MaxResults)
	}
	return nil
}
