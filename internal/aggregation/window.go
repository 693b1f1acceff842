package aggregation

import (
	"time"

	"mapprice/server/internal/clock"
	"mapprice/server/internal/models"
	"mapprice/server/internal/units"
)

// RecencyWindowDays is the trailing span averaged for a size class.
const RecencyWindowDays = 93

// WindowResult is the recency-bounded average of one group.
type WindowResult struct {
	AveragePrice int64
	LatestDate   time.Time
	Count        int
}

// WindowAverage averages the prices contracted within RecencyWindowDays of
// the group's latest contract date, both ends inclusive. It reports false
// when nothing falls in the window.
func WindowAverage(records []models.TransactionRecord) (WindowResult, bool) {
	if len(records) == 0 {
		return WindowResult{}, false
	}

	maxDate := clock.Date(records[0].ContractDate)
	for _, r := range records[1:] {
		if d := clock.Date(r.ContractDate); d.After(maxDate) {
			maxDate = d
		}
	}
	from := maxDate.AddDate(0, 0, -RecencyWindowDays)

	var sum int64
	var count int
	for _, r := range records {
		d := clock.Date(r.ContractDate)
		if d.Before(from) || d.After(maxDate) {
			continue
		}
		sum += r.Price
		count++
	}
	if count == 0 {
		return WindowResult{}, false
	}

	return WindowResult{
		AveragePrice: units.DivideRounded(sum, int64(count)),
		LatestDate:   maxDate,
		Count:        count,
	}, true
}
