package services

import (
	"errors"
	"pi360-service/internal/domain"
	"strings"
)

// AuditCoordinates lists facilities whose coordinates are non-finite or out of
// range. Ranking silently drops the non-finite ones, so callers surface these
// as data-quality warnings instead.
func AuditCoordinates(facilities []domain.Facility) []domain.CoordinateIssue {
	var issues []domain.CoordinateIssue
	for _, f := range facilities {
		err := f.Point().Validate()
		if err == nil {
			continue
		}
		reason := err.Error()
		if errors.Is(err, domain.ErrInvalidPoint) {
			reason = strings.TrimPrefix(reason, domain.ErrInvalidPoint.Error()+": ")
		}
		issues = append(issues, domain.CoordinateIssue{
			FacilityID: f.ID,
			Name:       f.Name,
			Reason:     reason,
		})
	}
	return issues
}
