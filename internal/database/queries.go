package database

import (
	"fmt"

	"github.com/paulmach/orb"
	"gorm.io/gorm"

	"mapprice/server/internal/models"
)

// PrivateListingsByParcel returns available private listings keyed by parcel.
func PrivateListingsByParcel(db *gorm.DB, parcelIDs []uint, categories []models.Category) (map[uint]models.PrivateListing, error) {
	q := db.Where("parcel_id IN ? AND available = ?", parcelIDs, true)
	if len(categories) > 0 {
		q = q.Where("category IN ?", categories)
	}

	var listings []models.PrivateListing
	if err := q.Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to load private listings: %w", err)
	}

	byParcel := make(map[uint]models.PrivateListing, len(listings))
	for _, l := range listings {
		byParcel[l.ParcelID] = l
	}
	return byParcel, nil
}

// PublicListingsByParcel returns available public listings keyed by parcel.
func PublicListingsByParcel(db *gorm.DB, parcelIDs []uint, categories []models.Category) (map[uint]models.PublicListing, error) {
	q := db.Where("parcel_id IN ? AND available = ?", parcelIDs, true)
	if len(categories) > 0 {
		q = q.Where("sale_category IN ?", categories)
	}

	var listings []models.PublicListing
	if err := q.Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to load public listings: %w", err)
	}

	byParcel := make(map[uint]models.PublicListing, len(listings))
	for _, l := range listings {
		byParcel[l.ParcelID] = l
	}
	return byParcel, nil
}

// DefaultAggregates returns the default size class of one kind per listing.
func DefaultAggregates(db *gorm.DB, listingIDs []uint, kind models.TransactionKind) (map[uint]models.SizeClassAggregate, error) {
	var rows []models.SizeClassAggregate
	err := db.Where("listing_id IN ? AND kind = ?", listingIDs, kind).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load %s aggregates: %w", kind, err)
	}

	byListing := make(map[uint]models.SizeClassAggregate, len(rows))
	for _, r := range rows {
		byListing[r.ListingID] = r
	}
	return byListing, nil
}

// LatestGroupsInRange returns, per listing, the most recent size class group
// of one kind whose size unit lies in [minSize, maxSize] and whose average
// is non-zero.
func LatestGroupsInRange(db *gorm.DB, listingIDs []uint, kind models.TransactionKind, minSize, maxSize int64) (map[uint]models.SizeClassGroup, error) {
	var rows []models.SizeClassGroup
	err := db.Where("listing_id IN ? AND kind = ?", listingIDs, kind).
		Where("size_unit BETWEEN ? AND ? AND average_price > 0", minSize, maxSize).
		Order("listing_id, latest_contract_date DESC, is_default DESC, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load %s size class groups: %w", kind, err)
	}

	byListing := make(map[uint]models.SizeClassGroup, len(rows))
	for _, r := range rows {
		if _, seen := byListing[r.ListingID]; seen {
			continue
		}
		byListing[r.ListingID] = r
	}
	return byListing, nil
}

// PublicAggregates returns the aggregate of each public listing.
func PublicAggregates(db *gorm.DB, publicIDs []uint) (map[uint]models.PublicAggregate, error) {
	var rows []models.PublicAggregate
	if err := db.Where("public_listing_id IN ?", publicIDs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load public aggregates: %w", err)
	}

	byListing := make(map[uint]models.PublicAggregate, len(rows))
	for _, r := range rows {
		byListing[r.PublicListingID] = r
	}
	return byListing, nil
}

// RegionsInBound returns regions of a level whose representative point lies
// inside the bound, edges included.
func RegionsInBound(db *gorm.DB, level models.RegionLevel, bound orb.Bound) ([]models.AdministrativeRegion, error) {
	var regions []models.AdministrativeRegion
	err := db.Where("level = ?", level).
		Where("longitude BETWEEN ? AND ? AND latitude BETWEEN ? AND ?",
			bound.Min.Lon(), bound.Max.Lon(), bound.Min.Lat(), bound.Max.Lat()).
		Order("code").
		Find(&regions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load regions: %w", err)
	}
	return regions, nil
}

// NameRow is a listing matched by name together with its parcel location.
type NameRow struct {
	ListingID   uint
	Name        string
	SidoCode    string
	SidoName    string
	SigunguName string
	DongName    string
	Latitude    float64
	Longitude   float64
}

// SearchListingNames finds available listings of the given table whose name
// contains any of tokens.
func SearchListingNames(db *gorm.DB, table string, tokens []string) ([]NameRow, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	match := db.Session(&gorm.Session{NewDB: true}).Where("l.name LIKE ?", "%"+tokens[0]+"%")
	for _, token := range tokens[1:] {
		match = match.Or("l.name LIKE ?", "%"+token+"%")
	}

	var rows []NameRow
	err := db.Table(table+" AS l").
		Select("l.id AS listing_id, l.name, p.sido_code, p.sido_name, p.sigungu_name, p.dong_name, p.latitude, p.longitude").
		Joins("JOIN parcels p ON p.id = l.parcel_id").
		Where("l.available = ? AND p.available = ?", true, true).
		Where(match).
		Order("l.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search %s by name: %w", table, err)
	}
	return rows, nil
}
