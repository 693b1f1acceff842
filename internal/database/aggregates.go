package database

import (
	"fmt"

	"gorm.io/gorm"

	"mapprice/server/internal/models"
)

// AggregateKey identifies a default size class row.
type AggregateKey struct {
	ListingID uint
	Kind      models.TransactionKind
}

// ListListingIDs pages through available private listings by id.
func ListListingIDs(db *gorm.DB, afterID uint, limit int) ([]uint, error) {
	var ids []uint
	err := db.Model(&models.PrivateListing{}).
		Where("available = ? AND id > ?", true, afterID).
		Order("id").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return ids, nil
}

// LoadTransactions returns the available trade and deposit records of the
// given listings, keyed by listing id.
func LoadTransactions(db *gorm.DB, listingIDs []uint) (map[uint][]models.TransactionRecord, error) {
	var records []models.TransactionRecord
	err := db.Where("listing_id IN ? AND available = ? AND kind IN ?", listingIDs, true, models.AggregatedKinds).
		Order("listing_id, id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	byListing := make(map[uint][]models.TransactionRecord, len(listingIDs))
	for _, r := range records {
		byListing[r.ListingID] = append(byListing[r.ListingID], r)
	}
	return byListing, nil
}

// ExistingAggregates maps the aggregate keys already stored for the given
// listings to their row ids.
func ExistingAggregates(db *gorm.DB, listingIDs []uint) (map[AggregateKey]uint, error) {
	var rows []models.SizeClassAggregate
	err := db.Select("id", "listing_id", "kind").
		Where("listing_id IN ?", listingIDs).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load existing aggregates: %w", err)
	}

	existing := make(map[AggregateKey]uint, len(rows))
	for _, r := range rows {
		existing[AggregateKey{ListingID: r.ListingID, Kind: r.Kind}] = r.ID
	}
	return existing, nil
}

// InsertBatch bulk inserts rows of any model, 200 per statement. Generated
// ids are written back into rows.
func InsertBatch[T any](db *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return db.CreateInBatches(rows, 200).Error
}

// UpdateAggregate rewrites the computed columns of an existing row.
func UpdateAggregate(db *gorm.DB, id uint, row models.SizeClassAggregate) error {
	return db.Model(&models.SizeClassAggregate{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"size_unit":            row.SizeUnit,
			"private_area":         row.PrivateArea,
			"supply_area":          row.SupplyArea,
			"average_price":        row.AveragePrice,
			"latest_contract_date": row.LatestContractDate,
			"area_source":          row.AreaSource,
		}).Error
}

// ReplaceGroups swaps the size class groups of the given listings.
func ReplaceGroups(db *gorm.DB, listingIDs []uint, groups []models.SizeClassGroup) error {
	if len(listingIDs) == 0 {
		return nil
	}
	if err := db.Where("listing_id IN ?", listingIDs).Delete(&models.SizeClassGroup{}).Error; err != nil {
		return fmt.Errorf("failed to clear size class groups: %w", err)
	}
	if err := InsertBatch(db, groups); err != nil {
		return fmt.Errorf("failed to insert size class groups: %w", err)
	}
	return nil
}

// ListPublicListings pages through available public listings with their
// size types.
func ListPublicListings(db *gorm.DB, afterID uint, limit int) ([]models.PublicListing, error) {
	var listings []models.PublicListing
	err := db.Preload("SizeTypes", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).
		Where("available = ? AND id > ?", true, afterID).
		Order("id").
		Limit(limit).
		Find(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list public listings: %w", err)
	}
	return listings, nil
}

// ExistingPublicAggregates maps public listing ids to their aggregate row ids.
func ExistingPublicAggregates(db *gorm.DB, listingIDs []uint) (map[uint]uint, error) {
	var rows []models.PublicAggregate
	err := db.Select("id", "public_listing_id").
		Where("public_listing_id IN ?", listingIDs).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load existing public aggregates: %w", err)
	}

	existing := make(map[uint]uint, len(rows))
	for _, r := range rows {
		existing[r.PublicListingID] = r.ID
	}
	return existing, nil
}

// UpdatePublicAggregate rewrites the computed columns of an existing row.
func UpdatePublicAggregate(db *gorm.DB, id uint, row models.PublicAggregate) error {
	return db.Model(&models.PublicAggregate{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"size_type":         row.SizeType,
			"size_unit":         row.SizeUnit,
			"supply_price":      row.SupplyPrice,
			"competition_ratio": row.CompetitionRatio,
			"min_winning_score": row.MinWinningScore,
		}).Error
}
