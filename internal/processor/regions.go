package processor

import (
	"fmt"

	"gorm.io/gorm"

	"mapprice/server/internal/database"
	"mapprice/server/internal/models"
	"mapprice/server/internal/units"
)

var rollupLevels = []models.RegionLevel{
	models.RegionProvince,
	models.RegionCityDistrict,
	models.RegionNeighborhood,
}

type regionPrices struct {
	trade   *int64
	deposit *int64
}

// rollupRegions rewrites the precomputed prices of every stored region as
// the rounded mean of the default averages of its listings. Regions without
// listings are reset.
func (a *AveragePriceAggregator) rollupRegions(db *gorm.DB) (int, error) {
	updated := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		updated = 0
		for _, level := range rollupLevels {
			n, err := rollupLevel(tx, level)
			if err != nil {
				return fmt.Errorf("%s: %w", level, err)
			}
			updated += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func rollupLevel(tx *gorm.DB, level models.RegionLevel) (int, error) {
	totals, err := database.RegionPriceTotals(tx, level)
	if err != nil {
		return 0, err
	}
	counts, err := database.RegionListingCounts(tx, level)
	if err != nil {
		return 0, err
	}
	codes, err := database.RegionCodes(tx, level)
	if err != nil {
		return 0, err
	}

	prices := make(map[string]*regionPrices)
	for _, t := range totals {
		if t.Count == 0 {
			continue
		}
		p, ok := prices[t.Code]
		if !ok {
			p = &regionPrices{}
			prices[t.Code] = p
		}
		avg := units.DivideRounded(t.Total, t.Count)
		switch t.Kind {
		case models.KindTrade:
			p.trade = &avg
		case models.KindDeposit:
			p.deposit = &avg
		}
	}

	for _, code := range codes {
		p := prices[code]
		if p == nil {
			p = &regionPrices{}
		}
		if err := database.UpdateRegionPrices(tx, code, p.trade, p.deposit, counts[code]); err != nil {
			return 0, fmt.Errorf("failed to update region %s: %w", code, err)
		}
	}
	return len(codes), nil
}
