package aggregation

import (
	"fmt"

	"mapprice/server/internal/models"
	"mapprice/server/internal/units"
)

// ListingResult is everything the aggregator writes for one listing.
type ListingResult struct {
	ListingID uint
	Defaults  []models.SizeClassAggregate
	Groups    []models.SizeClassGroup
}

// SizeUnitFor converts a group's areas into its size unit. The supply area
// is used when reported, otherwise the private area is scaled up.
func SizeUnitFor(key GroupKey) (int64, models.AreaSource, error) {
	if key.SupplyArea > 0 {
		size, err := units.ToSizeUnit(key.SupplyArea)
		return size, models.AreaSourceSupply, err
	}
	size, err := units.ToTempSizeUnit(key.PrivateArea)
	return size, models.AreaSourcePrivate, err
}

// AggregateListing selects the default size class per aggregated kind and
// computes every group's windowed average.
func AggregateListing(listingID uint, records []models.TransactionRecord) (ListingResult, error) {
	result := ListingResult{ListingID: listingID}
	byKind := PartitionByKind(records)

	for _, kind := range models.AggregatedKinds {
		groups := GroupRecords(byKind[kind])
		for i, g := range groups {
			window, ok := WindowAverage(g.Records)
			if !ok {
				continue
			}
			size, source, err := SizeUnitFor(g.Key)
			if err != nil {
				return result, fmt.Errorf("listing %d: size unit: %w", listingID, err)
			}

			result.Groups = append(result.Groups, models.SizeClassGroup{
				ListingID:          listingID,
				Kind:               kind,
				PrivateArea:        g.Key.PrivateArea,
				SupplyArea:         g.Key.SupplyArea,
				SizeUnit:           size,
				AveragePrice:       window.AveragePrice,
				LatestContractDate: window.LatestDate,
				RecordCount:        len(g.Records),
				IsDefault:          i == 0,
				AreaSource:         source,
			})

			if i == 0 {
				result.Defaults = append(result.Defaults, models.SizeClassAggregate{
					ListingID:          listingID,
					Kind:               kind,
					SizeUnit:           size,
					PrivateArea:        g.Key.PrivateArea,
					SupplyArea:         g.Key.SupplyArea,
					AveragePrice:       window.AveragePrice,
					LatestContractDate: window.LatestDate,
					AreaSource:         source,
				})
			}
		}
	}
	return result, nil
}
