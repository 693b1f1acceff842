package search

import (
	"time"

	"mapprice/server/internal/clock"
	"mapprice/server/internal/models"
)

// DeriveStatus places now relative to the application schedule of a public
// listing. A missing or placeholder date gives StatusUnknown.
func DeriveStatus(open, end *time.Time, now time.Time) models.PublicStatus {
	if !isSet(open) || !isSet(end) {
		return models.StatusUnknown
	}

	today := clock.Date(now)
	switch {
	case today.Before(clock.Date(*open)):
		return models.StatusBeforeOpen
	case !today.After(clock.Date(*end)):
		return models.StatusReceiving
	default:
		return models.StatusClosed
	}
}

func isSet(t *time.Time) bool {
	return t != nil && !t.IsZero() && !clock.Date(*t).Equal(models.UnsetDate)
}

func statusAccepted(status models.PublicStatus, accepted []models.PublicStatus) bool {
	if len(accepted) == 0 {
		return true
	}
	for _, s := range accepted {
		if s == status {
			return true
		}
	}
	return false
}
