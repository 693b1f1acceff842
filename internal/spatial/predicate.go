package spatial

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

var ErrInvalidRectangle = errors.New("invalid rectangle")

// DefaultRadiusDegree is the distance proxy used by radius searches, about
// one kilometre at Korean latitudes.
const DefaultRadiusDegree = 0.01

// Shape is a containment predicate over lon/lat points.
type Shape interface {
	Filter
	Contains(p orb.Point) bool
	Bound() orb.Bound
}

// Rectangle is an envelope given by its north-west and south-east corners.
type Rectangle struct {
	NorthWest orb.Point
	SouthEast orb.Point
}

// RectanglePredicate builds an envelope from the north-west corner p1 and the
// south-east corner p2.
func RectanglePredicate(p1, p2 orb.Point) Rectangle {
	return Rectangle{NorthWest: p1, SouthEast: p2}
}

// Validate checks the corner order.
func (r Rectangle) Validate() error {
	if r.NorthWest.Lat() < r.SouthEast.Lat() {
		return fmt.Errorf("%w: north-west latitude %.6f below south-east latitude %.6f",
			ErrInvalidRectangle, r.NorthWest.Lat(), r.SouthEast.Lat())
	}
	if r.NorthWest.Lon() > r.SouthEast.Lon() {
		return fmt.Errorf("%w: north-west longitude %.6f east of south-east longitude %.6f",
			ErrInvalidRectangle, r.NorthWest.Lon(), r.SouthEast.Lon())
	}
	return nil
}

func (r Rectangle) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{r.NorthWest.Lon(), r.SouthEast.Lat()},
		Max: orb.Point{r.SouthEast.Lon(), r.NorthWest.Lat()},
	}
}

// Contains is inclusive on every edge.
func (r Rectangle) Contains(p orb.Point) bool {
	return r.Bound().Contains(p)
}

// Radius matches points within Degree of Center, measured as a planar
// distance in degrees.
type Radius struct {
	Center orb.Point
	Degree float64
}

func RadiusPredicate(center orb.Point, degree float64) Radius {
	return Radius{Center: center, Degree: degree}
}

func (r Radius) Bound() orb.Bound {
	return r.Center.Bound().Pad(r.Degree)
}

func (r Radius) Contains(p orb.Point) bool {
	return planar.DistanceSquared(r.Center, p) <= r.Degree*r.Degree
}
