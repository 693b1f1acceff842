package models

import "github.com/paulmach/orb"

// Parcel is a land or building site shown on the map.
type Parcel struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	SidoName    string  `gorm:"size:40" json:"sido_name"`
	SigunguName string  `gorm:"size:40" json:"sigungu_name"`
	DongName    string  `gorm:"size:40" json:"dong_name"`
	RoadAddress string  `gorm:"size:200" json:"road_address"`
	Latitude    float64 `gorm:"not null;index:idx_parcels_coordinates,priority:1" json:"latitude"`
	Longitude   float64 `gorm:"not null;index:idx_parcels_coordinates,priority:2" json:"longitude"`
	Available   bool    `gorm:"not null;default:true;index" json:"available"`
	SidoCode    string  `gorm:"size:2;index" json:"sido_code"`
	SigunguCode string  `gorm:"size:5;index" json:"sigungu_code"`
	DongCode    string  `gorm:"size:10;index" json:"dong_code"`

	PrivateListing *PrivateListing `gorm:"foreignKey:ParcelID" json:"private_listing,omitempty"`
	PublicListing  *PublicListing  `gorm:"foreignKey:ParcelID" json:"public_listing,omitempty"`
}

func (Parcel) TableName() string {
	return "parcels"
}

// Point returns the parcel location as lon/lat.
func (p Parcel) Point() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// Address joins the administrative names into a display address.
func (p Parcel) Address() string {
	addr := p.SidoName
	for _, part := range []string{p.SigunguName, p.DongName} {
		if part == "" {
			continue
		}
		if addr != "" {
			addr += " "
		}
		addr += part
	}
	return addr
}
