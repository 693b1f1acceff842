package spatial

import (
	"errors"
	"fmt"

	"mapprice/server/internal/models"
)

var ErrZoomOutOfRange = errors.New("zoom out of range")

const (
	MinZoom     = 6
	MaxZoom     = 22
	ListingZoom = 15
)

// Granularity is what a map query returns at a given zoom.
type Granularity int

const (
	GranularityListing Granularity = iota
	GranularityProvince
	GranularityCityDistrict
	GranularityNeighborhood
)

// String returns the string representation of a Granularity
func (g Granularity) String() string {
	switch g {
	case GranularityListing:
		return "listing"
	case GranularityProvince:
		return "province"
	case GranularityCityDistrict:
		return "city_district"
	case GranularityNeighborhood:
		return "neighborhood"
	default:
		return "unknown"
	}
}

// RegionLevel maps a region granularity to the stored region level.
func (g Granularity) RegionLevel() (models.RegionLevel, bool) {
	switch g {
	case GranularityProvince:
		return models.RegionProvince, true
	case GranularityCityDistrict:
		return models.RegionCityDistrict, true
	case GranularityNeighborhood:
		return models.RegionNeighborhood, true
	}
	return 0, false
}

// ResolveGranularity decides between individual listings and region
// aggregates for a zoom level.
func ResolveGranularity(zoom int) (Granularity, error) {
	switch {
	case zoom < MinZoom || zoom > MaxZoom:
		return 0, fmt.Errorf("%w: %d not in [%d,%d]", ErrZoomOutOfRange, zoom, MinZoom, MaxZoom)
	case zoom >= ListingZoom:
		return GranularityListing, nil
	case zoom > 11:
		return GranularityNeighborhood, nil
	case zoom >= 9:
		return GranularityCityDistrict, nil
	default:
		return GranularityProvince, nil
	}
}
