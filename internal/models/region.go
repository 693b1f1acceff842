package models

import "github.com/paulmach/orb"

// RegionLevel is the depth of an administrative region.
type RegionLevel int

const (
	RegionProvince     RegionLevel = 1
	RegionCityDistrict RegionLevel = 2
	RegionNeighborhood RegionLevel = 3
)

// String returns the string representation of a RegionLevel
func (l RegionLevel) String() string {
	switch l {
	case RegionProvince:
		return "province"
	case RegionCityDistrict:
		return "city_district"
	case RegionNeighborhood:
		return "neighborhood"
	default:
		return "unknown"
	}
}

// AdministrativeRegion is imported from the boundary reference; only the
// price columns are written by this service.
type AdministrativeRegion struct {
	ID                  uint        `gorm:"primaryKey" json:"id"`
	Code                string      `gorm:"size:10;not null;uniqueIndex" json:"code"`
	Name                string      `gorm:"size:60;not null" json:"name"`
	Level               RegionLevel `gorm:"not null;index" json:"level"`
	ParentCode          string      `gorm:"size:10;index" json:"parent_code"`
	Latitude            float64     `gorm:"not null" json:"latitude"`
	Longitude           float64     `gorm:"not null" json:"longitude"`
	TradeAveragePrice   *int64      `json:"trade_average_price"`
	DepositAveragePrice *int64      `json:"deposit_average_price"`
	ListingCount        int64       `json:"listing_count"`
}

func (AdministrativeRegion) TableName() string {
	return "administrative_regions"
}

func (r AdministrativeRegion) Point() orb.Point {
	return orb.Point{r.Longitude, r.Latitude}
}
