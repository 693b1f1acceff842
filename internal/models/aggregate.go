package models

import "time"

// AreaSource records which area a size unit was derived from.
type AreaSource string

const (
	AreaSourceSupply  AreaSource = "supply"
	AreaSourcePrivate AreaSource = "private"
)

// SizeClassAggregate holds the default size class of a listing for one kind.
type SizeClassAggregate struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	ListingID          uint            `gorm:"not null;uniqueIndex:idx_size_class_aggregates_key,priority:1" json:"listing_id"`
	Kind               TransactionKind `gorm:"size:10;not null;uniqueIndex:idx_size_class_aggregates_key,priority:2" json:"kind"`
	SizeUnit           int64           `gorm:"not null" json:"size_unit"`
	PrivateArea        float64         `gorm:"not null" json:"private_area"`
	SupplyArea         float64         `json:"supply_area"`
	AveragePrice       int64           `gorm:"not null" json:"average_price"`
	LatestContractDate time.Time       `gorm:"type:date;not null" json:"latest_contract_date"`
	AreaSource         AreaSource      `gorm:"size:10;not null" json:"area_source"`
}

func (SizeClassAggregate) TableName() string {
	return "size_class_aggregates"
}

// SizeClassGroup is every (private area, supply area) group of a listing
// with its windowed average, default or not.
type SizeClassGroup struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	ListingID          uint            `gorm:"not null;index:idx_size_class_groups_listing,priority:1" json:"listing_id"`
	Kind               TransactionKind `gorm:"size:10;not null;index:idx_size_class_groups_listing,priority:2" json:"kind"`
	PrivateArea        float64         `gorm:"not null" json:"private_area"`
	SupplyArea         float64         `json:"supply_area"`
	SizeUnit           int64           `gorm:"not null;index" json:"size_unit"`
	AveragePrice       int64           `gorm:"not null" json:"average_price"`
	LatestContractDate time.Time       `gorm:"type:date;not null" json:"latest_contract_date"`
	RecordCount        int             `gorm:"not null" json:"record_count"`
	IsDefault          bool            `gorm:"not null;default:false" json:"is_default"`
	AreaSource         AreaSource      `gorm:"size:10;not null" json:"area_source"`
}

func (SizeClassGroup) TableName() string {
	return "size_class_groups"
}

// PublicAggregate is the representative size type of a public listing.
type PublicAggregate struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	PublicListingID  uint   `gorm:"not null;uniqueIndex" json:"public_listing_id"`
	SizeType         string `gorm:"size:20;not null" json:"size_type"`
	SizeUnit         int64  `gorm:"not null" json:"size_unit"`
	SupplyPrice      int64  `json:"supply_price"`
	CompetitionRatio *int64 `json:"competition_ratio"`
	MinWinningScore  *int64 `json:"min_winning_score"`
}

func (PublicAggregate) TableName() string {
	return "public_aggregates"
}
