package aggregation

import (
	"sort"

	"mapprice/server/internal/models"
	"mapprice/server/internal/units"
)

// SummarizePublic picks the size type with the most general-supply
// households and attaches the listing-wide competition ratio and minimum
// winning score. It returns nil for a listing without size types.
func SummarizePublic(listing models.PublicListing) (*models.PublicAggregate, error) {
	if len(listing.SizeTypes) == 0 {
		return nil, nil
	}

	types := make([]models.PublicSizeType, len(listing.SizeTypes))
	copy(types, listing.SizeTypes)
	sort.SliceStable(types, func(i, j int) bool {
		if types[i].GeneralSupplyCount != types[j].GeneralSupplyCount {
			return types[i].GeneralSupplyCount > types[j].GeneralSupplyCount
		}
		return types[i].SizeType < types[j].SizeType
	})
	top := types[0]

	size, _, err := SizeUnitFor(GroupKey{PrivateArea: top.PrivateArea, SupplyArea: top.SupplyArea})
	if err != nil {
		return nil, err
	}

	agg := &models.PublicAggregate{
		PublicListingID: listing.ID,
		SizeType:        top.SizeType,
		SizeUnit:        size,
		SupplyPrice:     top.SupplyPrice,
	}

	var applicants, supply int64
	var minScore int64
	for _, t := range types {
		applicants += t.ApplicantCount
		supply += t.GeneralSupplyCount
		if t.MinWinningScore > 0 && (minScore == 0 || t.MinWinningScore < minScore) {
			minScore = t.MinWinningScore
		}
	}
	if supply == 0 {
		return agg, nil
	}

	ratio := units.DivideRounded(applicants, supply)
	agg.CompetitionRatio = &ratio
	if minScore > 0 {
		agg.MinWinningScore = &minScore
	}
	return agg, nil
}
