package models

import "time"

// Category is the building category of a listing.
type Category string

const (
	CategoryApartment Category = "apartment"
	CategoryStudio    Category = "studio"
	CategoryRowHouse  Category = "rowhouse"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryApartment, CategoryStudio, CategoryRowHouse:
		return true
	}
	return false
}

// PrivateListing is a resale or lease eligible property on a parcel.
type PrivateListing struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	ParcelID  uint     `gorm:"not null;uniqueIndex" json:"parcel_id"`
	Name      string   `gorm:"size:100;not null;index" json:"name"`
	Category  Category `gorm:"size:20;not null;index" json:"category"`
	Available bool     `gorm:"not null;default:true" json:"available"`
}

func (PrivateListing) TableName() string {
	return "private_listings"
}

// UnsetDate is the placeholder the feed uses for an unknown schedule date.
var UnsetDate = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// PublicListing is a pre-sale offering on a parcel.
type PublicListing struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	ParcelID           uint       `gorm:"not null;uniqueIndex" json:"parcel_id"`
	Name               string     `gorm:"size:100;not null;index" json:"name"`
	SaleCategory       Category   `gorm:"size:20;not null;index" json:"sale_category"`
	OfferOpenDate      *time.Time `gorm:"type:date" json:"offer_open_date"`
	ApplicationEndDate *time.Time `gorm:"type:date" json:"application_end_date"`
	Available          bool       `gorm:"not null;default:true" json:"available"`

	SizeTypes []PublicSizeType `gorm:"foreignKey:PublicListingID" json:"size_types,omitempty"`
}

func (PublicListing) TableName() string {
	return "public_listings"
}

// PublicSizeType is one unit type offered by a public listing.
type PublicSizeType struct {
	ID                 uint    `gorm:"primaryKey" json:"id"`
	PublicListingID    uint    `gorm:"not null;index" json:"public_listing_id"`
	SizeType           string  `gorm:"size:20;not null" json:"size_type"`
	PrivateArea        float64 `gorm:"not null" json:"private_area"`
	SupplyArea         float64 `json:"supply_area"`
	SupplyPrice        int64   `json:"supply_price"`
	GeneralSupplyCount int64   `json:"general_supply_count"`
	ApplicantCount     int64   `json:"applicant_count"`
	MinWinningScore    int64   `json:"min_winning_score"`
}

func (PublicSizeType) TableName() string {
	return "public_size_types"
}
