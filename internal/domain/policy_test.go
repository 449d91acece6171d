package domain

import (
	"errors"
	"math"
	"testing"
)

func TestProximityPolicyValidate(t *testing.T) {
	zero := 0

	tests := []struct {
		name    string
		policy  ProximityPolicy
		wantErr bool
	}{
		{name: "bounded", policy: NewProximityPolicy(10, 5)},
		{name: "unbounded", policy: NewProximityPolicy(10, 0)},
		{name: "zero radius", policy: ProximityPolicy{RadiusMiles: 0}, wantErr: true},
		{name: "negative radius", policy: ProximityPolicy{RadiusMiles: -1}, wantErr: true},
		{name: "nan radius", policy: ProximityPolicy{RadiusMiles: math.NaN()}, wantErr: true},
		{name: "zero max", policy: ProximityPolicy{RadiusMiles: 1, MaxResults: &zero}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPolicy) {
					t.Fatalf("Validate() = %v, want ErrInvalidPolicy", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewProximityPolicyUnbounded(t *testing.T) {
	if !NewProximityPolicy(5, 0).Unbounded() {
		t.Fatalf("max results 0 should produce an unbounded policy")
	}
	p := NewProximityPolicy(5, 3)
	if p.Unbounded() || *p.MaxResults != 3 {
		t.Fatalf("MaxResults = %v, want 3", p.MaxResults)
	}
}

func TestGeoPointValidate(t *testing.T) {
	valid := []GeoPoint{{0, 0}, {90, 180}, {-90, -180}, {39.9, -98.6}}
	for _, p := range valid {
		if err := p.Validate(); err != nil {
			t.Errorf("Validate(%v) = %v, want nil", p, err)
		}
	}

	invalid := []GeoPoint{{91, 0}, {0, 181}, {math.NaN(), 0}, {0, math.Inf(1)}}
	for _, p := range invalid {
		if err := p.Validate(); !errors.Is(err, ErrInvalidPoint) {
			t.Errorf("Validate(%v) = %v, want ErrInvalidPoint", p, err)
		}
	}
}
