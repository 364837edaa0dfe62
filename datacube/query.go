package datacube

import (
	"math"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/pkg/errors"
)

const (
	// DegenerateBoxTolerance is the half-width, in storage CRS units, by
	// which a reprojected query box that collapsed to zero width or height
	// is expanded so downstream range search does not return an empty
	// slice. Point queries and axis-aligned inputs under some projections
	// hit this regularly.
	DegenerateBoxTolerance = 1e-3

	// TimePointEpsilon widens a scalar time query into the range
	// [t, t+TimePointEpsilon) so that index translation returns exactly
	// one label when an exact match exists.
	TimePointEpsilon = time.Millisecond
)

// Dimension name aliases recognized by the translator.
var (
	xAliases    = map[string]bool{"x": true, "lon": true, "longitude": true}
	yAliases    = map[string]bool{"y": true, "lat": true, "latitude": true}
	timeAliases = map[string]bool{"time": true, "t": true}
)

// timeLayouts are tried in order when a temporal label arrives as a string.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// DimQuery is one dimension's requested selection in user terms. Either
// Point or Begin/End may be set, not both. Temporal values may be
// time.Time, ISO-8601 strings, numeric epoch seconds, or (y, m, d[, h, mi,
// s]) int tuples; other dimensions take numbers. ArrayRange optionally
// restricts the result by raw positional offset (half-open).
type DimQuery struct {
	Begin      interface{}
	End        interface{}
	Point      interface{}
	ArrayRange *Slice
}

// Query is a user-facing request: per-dimension selections, optionally
// expressed in an explicit CRS (proj4 format).
type Query struct {
	CRS  string
	Dims map[string]DimQuery
}

// DimSelection is one dimension's selection translated into storage
// coordinate space.
type DimSelection struct {
	Range      Range
	ArrayRange *Slice
}

// TranslateQuery converts q into the storage's native coordinate space,
// keyed by the storage's own dimension names. Spatial aliases are resolved
// against storageCoords, spatial boxes are reprojected from q.CRS to
// storageCRS when the two differ, scalar queries become degenerate ranges,
// and unknown dimension names pass through unchanged.
func TranslateQuery(q Query, storageCRS string, storageCoords map[string]Coordinate) (map[string]DimSelection, error) {
	out := make(map[string]DimSelection)

	var xName, yName string
	var xQuery, yQuery *DimQuery
	for name := range q.Dims {
		dq := q.Dims[name]
		switch {
		case xAliases[name]:
			if xQuery != nil {
				return nil, errors.Errorf("query names dimension %s twice via aliases", name)
			}
			xName, xQuery = name, &dq
		case yAliases[name]:
			if yQuery != nil {
				return nil, errors.Errorf("query names dimension %s twice via aliases", name)
			}
			yName, yQuery = name, &dq
		case timeAliases[name]:
			r, err := temporalRange(dq)
			if err != nil {
				return nil, errors.WithMessagef(err, "dimension %s", name)
			}
			out[resolveAlias(name, timeAliases, storageCoords)] = DimSelection{
				Range:      r,
				ArrayRange: dq.ArrayRange,
			}
		default:
			r, err := numericRange(dq)
			if err != nil {
				return nil, errors.WithMessagef(err, "dimension %s", name)
			}
			out[name] = DimSelection{Range: r, ArrayRange: dq.ArrayRange}
		}
	}

	if xQuery == nil && yQuery == nil {
		return out, nil
	}

	xRange, yRange, err := spatialRanges(q, storageCRS, storageCoords, xQuery, yQuery)
	if err != nil {
		return nil, err
	}
	if xQuery != nil {
		sel := DimSelection{Range: xRange, ArrayRange: xQuery.ArrayRange}
		out[resolveAlias(xName, xAliases, storageCoords)] = sel
	}
	if yQuery != nil {
		sel := DimSelection{Range: yRange, ArrayRange: yQuery.ArrayRange}
		out[resolveAlias(yName, yAliases, storageCoords)] = sel
	}
	return out, nil
}

// spatialRanges derives the x/y label ranges, reprojecting the bounding box
// into the storage CRS when the query is expressed in a different one.
func spatialRanges(q Query, storageCRS string, storageCoords map[string]Coordinate, xq, yq *DimQuery) (Range, Range, error) {
	var xr, yr Range
	var err error
	if xq != nil {
		if xr, err = numericRange(*xq); err != nil {
			return xr, yr, errors.WithMessage(err, "x dimension")
		}
	}
	if yq != nil {
		if yr, err = numericRange(*yq); err != nil {
			return xr, yr, errors.WithMessage(err, "y dimension")
		}
	}
	if q.CRS == "" || storageCRS == "" || q.CRS == storageCRS {
		return xr, yr, nil
	}

	// A box needs both axes; a missing one falls back to the storage
	// extent of its aliased coordinate.
	if xq == nil {
		xr = storageExtent(storageCoords, xAliases)
	}
	if yq == nil {
		yr = storageExtent(storageCoords, yAliases)
	}
	if !boundedRange(xr) || !boundedRange(yr) {
		return xr, yr, errors.Wrap(ErrProjection, "cannot reproject an unbounded spatial range")
	}

	srcSR, err := proj.Parse(q.CRS)
	if err != nil {
		return xr, yr, errors.Wrapf(ErrProjection, "parsing query CRS %q: %v", q.CRS, err)
	}
	dstSR, err := proj.Parse(storageCRS)
	if err != nil {
		return xr, yr, errors.Wrapf(ErrProjection, "parsing storage CRS %q: %v", storageCRS, err)
	}
	trans, err := srcSR.NewTransform(dstSR)
	if err != nil {
		return xr, yr, errors.Wrapf(ErrProjection, "building transform: %v", err)
	}

	box := geom.Polygon{{
		{X: xr.Begin, Y: yr.Begin},
		{X: xr.End, Y: yr.Begin},
		{X: xr.End, Y: yr.End},
		{X: xr.Begin, Y: yr.End},
	}}
	transformed, err := box.Transform(trans)
	if err != nil {
		return xr, yr, errors.Wrapf(ErrProjection, "reprojecting query box: %v", err)
	}
	b := transformed.Bounds()
	xr = expandDegenerate(Range{Begin: b.Min.X, End: b.Max.X})
	yr = expandDegenerate(Range{Begin: b.Min.Y, End: b.Max.Y})
	return xr, yr, nil
}

// expandDegenerate widens a zero-width range symmetrically by
// DegenerateBoxTolerance.
func expandDegenerate(r Range) Range {
	if r.Begin == r.End {
		return Range{Begin: r.Begin - DegenerateBoxTolerance, End: r.End + DegenerateBoxTolerance}
	}
	return r
}

// resolveAlias maps a query dimension name onto the storage's own name for
// the same axis, when the storage uses a different alias.
func resolveAlias(name string, aliases map[string]bool, storageCoords map[string]Coordinate) string {
	if _, ok := storageCoords[name]; ok {
		return name
	}
	for candidate := range storageCoords {
		if aliases[candidate] {
			return candidate
		}
	}
	return name
}

// storageExtent returns the full extent of the storage coordinate matching
// one of aliases, as a value-ordered range.
func storageExtent(storageCoords map[string]Coordinate, aliases map[string]bool) Range {
	for name, c := range storageCoords {
		if aliases[name] {
			if c.Begin <= c.End {
				return Range{Begin: c.Begin, End: c.End}
			}
			return Range{Begin: c.End, End: c.Begin}
		}
	}
	return FullRange()
}

func boundedRange(r Range) bool {
	return !math.IsNaN(r.Begin) && !math.IsNaN(r.End)
}

// numericRange coerces a non-temporal DimQuery into a label range. A Point
// becomes the degenerate range [v, v]; omitted endpoints stay open.
func numericRange(dq DimQuery) (Range, error) {
	if dq.Point != nil {
		v, err := numericLabel(dq.Point)
		if err != nil {
			return Range{}, err
		}
		return Point(v), nil
	}
	r := FullRange()
	var err error
	if dq.Begin != nil {
		if r.Begin, err = numericLabel(dq.Begin); err != nil {
			return Range{}, err
		}
	}
	if dq.End != nil {
		if r.End, err = numericLabel(dq.End); err != nil {
			return Range{}, err
		}
	}
	return r, nil
}

// temporalRange coerces a temporal DimQuery into a label range in Unix
// seconds. A scalar becomes [t, t+TimePointEpsilon).
func temporalRange(dq DimQuery) (Range, error) {
	if dq.Point != nil {
		t, err := temporalLabel(dq.Point)
		if err != nil {
			return Range{}, err
		}
		return Range{Begin: t, End: t + TimePointEpsilon.Seconds()}, nil
	}
	r := FullRange()
	var err error
	if dq.Begin != nil {
		if r.Begin, err = temporalLabel(dq.Begin); err != nil {
			return Range{}, err
		}
	}
	if dq.End != nil {
		if r.End, err = temporalLabel(dq.End); err != nil {
			return Range{}, err
		}
	}
	return r, nil
}

// numericLabel widens any numeric label value to float64. time.Time is
// accepted for symmetry with temporal dimensions.
func numericLabel(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case time.Time:
		return TimeLabel(n), nil
	default:
		return 0, errors.Wrapf(ErrUnsupportedIndex, "label value %v (%T)", v, v)
	}
}

// temporalLabel coerces a temporal value to Unix seconds.
func temporalLabel(v interface{}) (float64, error) {
	switch t := v.(type) {
	case time.Time:
		return TimeLabel(t), nil
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return TimeLabel(parsed), nil
			}
		}
		return 0, errors.Wrapf(ErrUnsupportedIndex, "unparseable time %q", t)
	case []int:
		if len(t) < 3 || len(t) > 6 {
			return 0, errors.Wrapf(ErrUnsupportedIndex, "time tuple needs 3 to 6 fields, got %d", len(t))
		}
		parts := [6]int{0, 1, 1, 0, 0, 0}
		copy(parts[:], t)
		return TimeLabel(time.Date(parts[0], time.Month(parts[1]), parts[2],
			parts[3], parts[4], parts[5], 0, time.UTC)), nil
	default:
		return numericLabel(v)
	}
}

// TimeLabel converts a time into the engine's label space, Unix seconds.
// Temporal coordinate labels use this encoding throughout.
func TimeLabel(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// LabelToTime converts a temporal label back into a time.Time.
func LabelToTime(label float64) time.Time {
	return time.Unix(0, int64(label*float64(time.Second))).UTC()
}
