package datacube

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// Index selects a portion of one dimension, either by coordinate label
// (Range) or by positional offset (Slice). The two kinds are mutually
// exclusive at every call site.
type Index interface {
	isIndex()
}

// Range selects by coordinate label. Both endpoints are inclusive, matching
// closed-interval query semantics. Endpoints may be given in either value
// order; NaN endpoints mean "from the coordinate's begin" or "to the
// coordinate's end".
type Range struct {
	Begin float64
	End   float64
}

func (Range) isIndex() {}

// FullRange selects a coordinate's complete extent.
func FullRange() Range {
	return Range{Begin: math.NaN(), End: math.NaN()}
}

// RangeFrom selects from begin to the coordinate's end.
func RangeFrom(begin float64) Range {
	return Range{Begin: begin, End: math.NaN()}
}

// RangeTo selects from the coordinate's begin to end.
func RangeTo(end float64) Range {
	return Range{Begin: math.NaN(), End: end}
}

// Point selects the single label v.
func Point(v float64) Range {
	return Range{Begin: v, End: v}
}

// Slice selects by positional offset: the half-open interval [Start, Stop)
// with the given Step. Only Step 1 is supported; the zero value selects a
// dimension's full extent once normalized. Negative Start or Stop count
// from the end of the dimension.
type Slice struct {
	Start int
	Stop  int
	Step  int
}

func (Slice) isIndex() {}

// NewSlice returns the step-1 slice [start, stop).
func NewSlice(start, stop int) Slice {
	return Slice{Start: start, Stop: stop, Step: 1}
}

// Len returns the number of selected offsets.
func (s Slice) Len() int {
	if s.Stop <= s.Start {
		return 0
	}
	return s.Stop - s.Start
}

// NormalizeIndex fills in the omitted bounds of idx using the coordinate's
// declared begin/end/length. A nil index selects the full extent. The
// returned index is the same kind as the input with every field resolved.
// No I/O is performed.
func NormalizeIndex(coord Coordinate, idx Index) (Index, error) {
	switch v := idx.(type) {
	case nil:
		return NewSlice(0, coord.Length), nil
	case Range:
		if math.IsNaN(v.Begin) {
			v.Begin = coord.Begin
		}
		if math.IsNaN(v.End) {
			v.End = coord.End
		}
		return v, nil
	case Slice:
		if v.Step == 0 {
			if v.Start == 0 && v.Stop == 0 {
				v.Stop = coord.Length
			}
			v.Step = 1
		}
		if v.Step != 1 {
			return nil, errors.Wrapf(ErrUnsupportedIndex, "slice step %d", v.Step)
		}
		if v.Start < 0 {
			v.Start += coord.Length
		}
		if v.Stop < 0 {
			v.Stop += coord.Length
		}
		if v.Start < 0 || v.Stop > coord.Length || v.Start > v.Stop {
			return nil, errors.Wrapf(ErrUnsupportedIndex,
				"slice [%d:%d) out of bounds for length %d", v.Start, v.Stop, coord.Length)
		}
		return v, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedIndex, "index kind %T", idx)
	}
}

// RangeToIndex translates a label Range into an integer Slice over labels
// by binary search. Labels must be monotonic; descending order is detected
// from the first two elements, searched through the reversed view, and the
// offsets mirrored back into forward-index space. Both Range endpoints are
// inclusive. Length-1 label arrays bypass the reversed-order branch.
func RangeToIndex(labels []float64, r Range) Slice {
	n := len(labels)
	if n == 0 {
		return NewSlice(0, 0)
	}
	lo, hi := r.Begin, r.End
	if lo > hi {
		lo, hi = hi, lo
	}
	if math.IsNaN(lo) {
		lo = math.Inf(-1)
	}
	if math.IsNaN(hi) {
		hi = math.Inf(1)
	}

	if n > 1 && labels[0] > labels[1] {
		// Descending: search the reversed (ascending) view, then mirror.
		rstart := sort.Search(n, func(i int) bool { return labels[n-1-i] >= lo })
		rstop := sort.Search(n, func(i int) bool { return labels[n-1-i] > hi })
		return NewSlice(n-rstop, n-rstart)
	}
	start := sort.Search(n, func(i int) bool { return labels[i] >= lo })
	stop := sort.Search(n, func(i int) bool { return labels[i] > hi })
	return NewSlice(start, stop)
}

// IndexShape computes the shape implied by a tuple of integer slices. Any
// slice with a step other than 1 is rejected: only contiguous fetches are
// supported.
func IndexShape(index []Slice) ([]int, error) {
	shape := make([]int, len(index))
	for i, s := range index {
		if s.Step != 1 {
			return nil, errors.Wrapf(ErrUnsupportedIndex, "slice step %d in dimension %d", s.Step, i)
		}
		shape[i] = s.Len()
	}
	return shape, nil
}

// shapeSize returns the element count of a shape.
func shapeSize(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
