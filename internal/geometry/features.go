package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"mapprice/server/internal/models"
)

// RegionFeatures renders region aggregates as GeoJSON points.
func RegionFeatures(regions []models.RegionEntity) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range regions {
		feature := geojson.NewFeature(orb.Point{r.Longitude, r.Latitude})
		feature.ID = r.Code
		feature.Properties = geojson.Properties{
			"code":                  r.Code,
			"name":                  r.Name,
			"level":                 r.Level.String(),
			"trade_average_price":   r.TradeAveragePrice,
			"deposit_average_price": r.DepositAveragePrice,
			"listing_count":         r.ListingCount,
		}
		fc.Append(feature)
	}
	return fc
}

// ResultFeatures renders bounding search results as GeoJSON points with
// the listing summaries as properties.
func ResultFeatures(results []models.ResultEntity) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range results {
		feature := geojson.NewFeature(orb.Point{r.Longitude, r.Latitude})
		feature.ID = r.ParcelID
		feature.Properties = geojson.Properties{
			"parcel_id": r.ParcelID,
			"address":   r.Address,
		}
		if r.Private != nil {
			feature.Properties["private"] = r.Private
		}
		if r.Public != nil {
			feature.Properties["public"] = r.Public
		}
		fc.Append(feature)
	}
	return fc
}

// Extent returns the bound covering every result, or false when there are
// none.
func Extent(results []models.ResultEntity) (orb.Bound, bool) {
	if len(results) == 0 {
		return orb.Bound{}, false
	}
	b := orb.Point{results[0].Longitude, results[0].Latitude}.Bound()
	for _, r := range results[1:] {
		b = b.Extend(orb.Point{r.Longitude, r.Latitude})
	}
	return b, true
}
