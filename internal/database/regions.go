package database

import (
	"fmt"

	"github.com/paulmach/orb"
	"gorm.io/gorm"

	"mapprice/server/internal/models"
)

// RegionPriceRow is the sum and count of default averages within a region.
type RegionPriceRow struct {
	Code  string
	Kind  models.TransactionKind
	Total int64
	Count int64
}

var regionColumns = map[models.RegionLevel]string{
	models.RegionProvince:     "p.sido_code",
	models.RegionCityDistrict: "p.sigungu_code",
	models.RegionNeighborhood: "p.dong_code",
}

// RegionPriceTotals sums the default aggregate averages of available
// listings grouped by the region code of their parcel.
func RegionPriceTotals(db *gorm.DB, level models.RegionLevel) ([]RegionPriceRow, error) {
	column, ok := regionColumns[level]
	if !ok {
		return nil, fmt.Errorf("unknown region level %d", level)
	}

	var rows []RegionPriceRow
	err := db.Table("size_class_aggregates AS a").
		Select(column+" AS code, a.kind AS kind, SUM(a.average_price) AS total, COUNT(*) AS count").
		Joins("JOIN private_listings l ON l.id = a.listing_id").
		Joins("JOIN parcels p ON p.id = l.parcel_id").
		Where("l.available = ? AND p.available = ?", true, true).
		Group(column + ", a.kind").
		Order(column + ", a.kind").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum region prices: %w", err)
	}
	return rows, nil
}

// RegionListingCounts counts available private listings per region code.
func RegionListingCounts(db *gorm.DB, level models.RegionLevel) (map[string]int64, error) {
	column, ok := regionColumns[level]
	if !ok {
		return nil, fmt.Errorf("unknown region level %d", level)
	}

	var rows []struct {
		Code  string
		Count int64
	}
	err := db.Table("private_listings AS l").
		Select(column+" AS code, COUNT(*) AS count").
		Joins("JOIN parcels p ON p.id = l.parcel_id").
		Where("l.available = ? AND p.available = ?", true, true).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count region listings: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Code] = r.Count
	}
	return counts, nil
}

// UpdateRegionPrices writes the precomputed prices of one region.
func UpdateRegionPrices(db *gorm.DB, code string, trade, deposit *int64, listings int64) error {
	return db.Model(&models.AdministrativeRegion{}).
		Where("code = ?", code).
		Updates(map[string]any{
			"trade_average_price":   trade,
			"deposit_average_price": deposit,
			"listing_count":         listings,
		}).Error
}

// RegionCodes lists the stored region codes of a level.
func RegionCodes(db *gorm.DB, level models.RegionLevel) ([]string, error) {
	var codes []string
	err := db.Model(&models.AdministrativeRegion{}).
		Where("level = ?", level).
		Order("code").
		Pluck("code", &codes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list region codes: %w", err)
	}
	return codes, nil
}

// RegionsMissingCoordinates lists regions imported without a display point.
func RegionsMissingCoordinates(db *gorm.DB) ([]models.AdministrativeRegion, error) {
	var regions []models.AdministrativeRegion
	err := db.Where("latitude = ? AND longitude = ?", 0, 0).
		Order("level, code").
		Find(&regions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list regions without coordinates: %w", err)
	}
	return regions, nil
}

// ParcelPoints returns the locations of the available parcels of a region.
func ParcelPoints(db *gorm.DB, level models.RegionLevel, code string) ([]orb.Point, error) {
	column, ok := regionColumns[level]
	if !ok {
		return nil, fmt.Errorf("unknown region level %d", level)
	}

	var parcels []models.Parcel
	err := db.Table("parcels AS p").
		Select("p.latitude, p.longitude").
		Where(column+" = ? AND p.available = ?", code, true).
		Order("p.id").
		Find(&parcels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load parcels of region %s: %w", code, err)
	}

	points := make([]orb.Point, len(parcels))
	for i, p := range parcels {
		points[i] = p.Point()
	}
	return points, nil
}

// UpdateRegionCoordinates stores the display point of a region.
func UpdateRegionCoordinates(db *gorm.DB, code string, point orb.Point) error {
	return db.Model(&models.AdministrativeRegion{}).
		Where("code = ?", code).
		Updates(map[string]any{
			"latitude":  point.Lat(),
			"longitude": point.Lon(),
		}).Error
}
