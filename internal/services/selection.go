package services

import "pi360-service/internal/domain"

// ReconcileSelection returns selectedID if it is still present in ranked, or
// "" when the selection must be cleared. The detail panel never points at a
// facility that is not currently visible.
func ReconcileSelection(selectedID string, ranked []domain.RankedFacility) string {
	if selectedID == "" {
		return ""
	}
	for _, r := range ranked {
		if r.ID == selectedID {
			return selectedID
		}
	}
	return ""
}
