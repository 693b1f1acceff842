package spatial

import (
	"gorm.io/gorm"

	"mapprice/server/internal/models"
)

// Filter is one condition of a map query. The variants are Rectangle,
// Radius, Category and SizeRange; Build lowers them onto the parcels table.
type Filter interface {
	filter()
}

func (Rectangle) filter() {}
func (Radius) filter()    {}
func (Category) filter()  {}
func (SizeRange) filter() {}

// Category restricts parcels by the listings they carry. An empty category
// list accepts every category of that side.
type Category struct {
	IncludePrivate bool
	Private        []models.Category
	IncludePublic  bool
	Public         []models.Category
}

// SizeRange bounds the size unit of the returned size class.
type SizeRange struct {
	Min *int64
	Max *int64
}

// Active is true only when both bounds are set; a single bound falls back to
// the default size class.
func (s SizeRange) Active() bool {
	return s.Min != nil && s.Max != nil
}

// Contains reports whether size lies within an active range.
func (s SizeRange) Contains(size int64) bool {
	return s.Active() && size >= *s.Min && size <= *s.Max
}

// Build applies filters to a query over parcels.
func Build(db *gorm.DB, filters ...Filter) *gorm.DB {
	for _, f := range filters {
		switch v := f.(type) {
		case Rectangle:
			b := v.Bound()
			db = db.Where("parcels.longitude BETWEEN ? AND ? AND parcels.latitude BETWEEN ? AND ?",
				b.Min.Lon(), b.Max.Lon(), b.Min.Lat(), b.Max.Lat())
		case Radius:
			b := v.Bound()
			lon, lat := v.Center.Lon(), v.Center.Lat()
			db = db.Where("parcels.longitude BETWEEN ? AND ? AND parcels.latitude BETWEEN ? AND ?",
				b.Min.Lon(), b.Max.Lon(), b.Min.Lat(), b.Max.Lat()).
				Where("((parcels.longitude - ?) * (parcels.longitude - ?) + (parcels.latitude - ?) * (parcels.latitude - ?)) <= ?",
					lon, lon, lat, lat, v.Degree*v.Degree)
		case Category:
			db = db.Where(categoryCondition(db, v))
		case SizeRange:
			if !v.Active() {
				continue
			}
			db = db.Where(sizeCondition(db, v))
		}
	}
	return db
}

func categoryCondition(db *gorm.DB, c Category) *gorm.DB {
	var subs []*gorm.DB
	if c.IncludePrivate {
		sub := db.Session(&gorm.Session{NewDB: true}).
			Model(&models.PrivateListing{}).Select("parcel_id").Where("available = ?", true)
		if len(c.Private) > 0 {
			sub = sub.Where("category IN ?", c.Private)
		}
		subs = append(subs, sub)
	}
	if c.IncludePublic {
		sub := db.Session(&gorm.Session{NewDB: true}).
			Model(&models.PublicListing{}).Select("parcel_id").Where("available = ?", true)
		if len(c.Public) > 0 {
			sub = sub.Where("sale_category IN ?", c.Public)
		}
		subs = append(subs, sub)
	}

	cond := db.Session(&gorm.Session{NewDB: true})
	if len(subs) == 0 {
		return cond.Where("1 = 0")
	}
	cond = cond.Where("parcels.id IN (?)", subs[0])
	for _, sub := range subs[1:] {
		cond = cond.Or("parcels.id IN (?)", sub)
	}
	return cond
}

func sizeCondition(db *gorm.DB, s SizeRange) *gorm.DB {
	private := db.Session(&gorm.Session{NewDB: true}).
		Table("private_listings AS pl").
		Select("pl.parcel_id").
		Joins("JOIN size_class_groups g ON g.listing_id = pl.id").
		Where("g.size_unit BETWEEN ? AND ? AND g.average_price > 0", *s.Min, *s.Max)
	public := db.Session(&gorm.Session{NewDB: true}).
		Table("public_listings AS pb").
		Select("pb.parcel_id").
		Joins("JOIN public_aggregates a ON a.public_listing_id = pb.id").
		Where("a.size_unit BETWEEN ? AND ?", *s.Min, *s.Max)
	return db.Session(&gorm.Session{NewDB: true}).
		Where("parcels.id IN (?)", private).
		Or("parcels.id IN (?)", public)
}
