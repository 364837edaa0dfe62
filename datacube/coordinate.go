package datacube

import (
	"math"

	"github.com/gridspatial/go-datacube/internal/dtype"
)

// Coordinate describes one dimension's extent and label cardinality for one
// storage unit. Begin and End may be in either order; descending extents
// (latitude, typically) have Begin > End. Immutable once the unit is built.
type Coordinate struct {
	Dtype  dtype.Kind
	Begin  float64
	End    float64
	Length int
	Units  string
}

// Descending reports whether the coordinate's labels decrease.
func (c Coordinate) Descending() bool {
	return c.Length > 1 && c.Begin > c.End
}

// Variable describes one data array's shape template relative to a storage
// unit's coordinates. Immutable.
type Variable struct {
	Dtype dtype.Kind

	// Nodata is the declared fill value for missing samples. NaN means the
	// variable declares none; the dtype's default sentinel is used instead.
	Nodata float64

	// Dimensions is the ordered tuple of dimension names the variable is
	// defined over.
	Dimensions []string

	Units string
}

// NodataOrDefault returns the declared nodata value, falling back to the
// dtype's sentinel when none is declared.
func (v Variable) NodataOrDefault() float64 {
	if math.IsNaN(v.Nodata) && !v.Dtype.IsFloat() {
		return v.Dtype.DefaultNodata()
	}
	return v.Nodata
}

// sameCoordinate compares coordinates for exact equality.
func sameCoordinate(a, b Coordinate) bool {
	return a.Dtype == b.Dtype &&
		a.Begin == b.Begin &&
		a.End == b.End &&
		a.Length == b.Length &&
		a.Units == b.Units
}

// sameVariable compares variable schemas, treating NaN nodata as equal.
func sameVariable(a, b Variable) bool {
	if a.Dtype != b.Dtype || a.Units != b.Units {
		return false
	}
	if !(a.Nodata == b.Nodata || (math.IsNaN(a.Nodata) && math.IsNaN(b.Nodata))) {
		return false
	}
	if len(a.Dimensions) != len(b.Dimensions) {
		return false
	}
	for i := range a.Dimensions {
		if a.Dimensions[i] != b.Dimensions[i] {
			return false
		}
	}
	return true
}
