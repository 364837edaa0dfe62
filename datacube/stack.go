package datacube

import (
	"github.com/pkg/errors"
)

// Stack is a zero-copy proxy concatenating several units along one
// dimension. Members must be pre-sorted and non-overlapping along the stack
// dimension, agree exactly on every other coordinate, and expose identical
// variable schemas with the stack dimension leading. All of this is checked
// eagerly at construction.
type Stack struct {
	dim     string
	units   []StorageUnit
	offsets []int // start offset of each member along the stack dimension
	coords  map[string]Coordinate
	vars    map[string]Variable
}

var _ StorageUnit = (*Stack)(nil)

// NewStack stacks units along dim. It fails with ErrInconsistentUnits
// rather than silently merging incompatible data.
func NewStack(dim string, units ...StorageUnit) (*Stack, error) {
	if len(units) == 0 {
		return nil, errors.New("stack needs at least one unit")
	}

	stackCoords := make([]Coordinate, len(units))
	for i, u := range units {
		c, ok := u.Coordinates()[dim]
		if !ok {
			return nil, errors.Wrapf(ErrMissingDimension, "%s in stack member %d", dim, i)
		}
		stackCoords[i] = c
	}

	descending := stackCoords[0].Descending()
	if stackCoords[0].Length == 1 && len(units) > 1 {
		descending = stackCoords[1].Begin < stackCoords[0].Begin
	}
	after := func(a, b float64) bool {
		if descending {
			return a < b
		}
		return a > b
	}
	for i := 1; i < len(units); i++ {
		if !after(stackCoords[i].Begin, stackCoords[i-1].End) {
			return nil, errors.Wrapf(ErrInconsistentUnits,
				"units unsorted or overlapping along %s at member %d", dim, i)
		}
	}

	s := &Stack{
		dim:     dim,
		units:   append([]StorageUnit(nil), units...),
		offsets: make([]int, len(units)),
		coords:  make(map[string]Coordinate),
		vars:    make(map[string]Variable),
	}

	// Non-stack coordinates must match the first member exactly.
	first := units[0]
	for name, c := range first.Coordinates() {
		if name == dim {
			continue
		}
		s.coords[name] = c
	}
	for i := 1; i < len(units); i++ {
		coords := units[i].Coordinates()
		if len(coords) != len(first.Coordinates()) {
			return nil, errors.Wrapf(ErrInconsistentUnits, "member %d has a different dimension set", i)
		}
		for name, c := range coords {
			if name == dim {
				continue
			}
			ref, ok := s.coords[name]
			if !ok || !sameCoordinate(ref, c) {
				return nil, errors.Wrapf(ErrInconsistentUnits,
					"member %d disagrees on coordinate %s", i, name)
			}
		}
	}

	// Variable schemas must match, with the stack dimension leading.
	for name, v := range first.Variables() {
		if len(v.Dimensions) == 0 || v.Dimensions[0] != dim {
			return nil, errors.Wrapf(ErrInconsistentUnits,
				"variable %s is not led by stack dimension %s", name, dim)
		}
		s.vars[name] = v
	}
	for i := 1; i < len(units); i++ {
		vars := units[i].Variables()
		if len(vars) != len(s.vars) {
			return nil, errors.Wrapf(ErrInconsistentUnits, "member %d has a different variable set", i)
		}
		for name, v := range vars {
			ref, ok := s.vars[name]
			if !ok || !sameVariable(ref, v) {
				return nil, errors.Wrapf(ErrInconsistentUnits,
					"member %d disagrees on variable %s", i, name)
			}
		}
	}

	length := 0
	for i, c := range stackCoords {
		s.offsets[i] = length
		length += c.Length
	}
	s.coords[dim] = Coordinate{
		Dtype:  stackCoords[0].Dtype,
		Begin:  stackCoords[0].Begin,
		End:    stackCoords[len(units)-1].End,
		Length: length,
		Units:  stackCoords[0].Units,
	}
	return s, nil
}

func (s *Stack) Coordinates() map[string]Coordinate { return s.coords }

func (s *Stack) Variables() map[string]Variable { return s.vars }

// CRS forwards the first member's CRS.
func (s *Stack) CRS() string { return StorageCRS(s.units[0]) }

// Coord resolves index against the stacked coordinate by concatenating the
// label arrays of only the members the resolved slice touches. Other
// dimensions are served by the first member.
func (s *Stack) Coord(dim string, index Index) ([]float64, Slice, error) {
	if dim != s.dim {
		return s.units[0].Coord(dim, index)
	}
	coord := s.coords[dim]
	sl, err := s.resolveStackSlice(coord, index)
	if err != nil {
		return nil, Slice{}, err
	}
	labels := make([]float64, 0, sl.Len())
	for i, u := range s.units {
		lo, hi, ok := s.memberWindow(i, sl)
		if !ok {
			continue
		}
		part, _, err := u.Coord(dim, NewSlice(lo, hi))
		if err != nil {
			return nil, Slice{}, errors.WithMessagef(err, "stack member %d", i)
		}
		labels = append(labels, part...)
	}
	return labels, sl, nil
}

// FillData routes the requested stack-dimension slice to the members whose
// coverage intersects it, translating global offsets into member-local
// ones, and assembles the pieces in dest with a running offset.
func (s *Stack) FillData(variable string, index []Slice, dest []float64) error {
	_, shape, err := checkFillIndex(s, variable, index, dest)
	if err != nil {
		return err
	}
	blockSize := shapeSize(shape[1:])
	written := 0
	for i, u := range s.units {
		lo, hi, ok := s.memberWindow(i, index[0])
		if !ok {
			continue
		}
		memberIndex := make([]Slice, len(index))
		memberIndex[0] = NewSlice(lo, hi)
		copy(memberIndex[1:], index[1:])
		n := (hi - lo) * blockSize
		if err := u.FillData(variable, memberIndex, dest[written:written+n]); err != nil {
			return errors.WithMessagef(err, "stack member %d", i)
		}
		written += n
	}
	if written != len(dest) {
		return errors.Errorf("stack fill wrote %d of %d elements", written, len(dest))
	}
	return nil
}

// resolveStackSlice turns an Index over the stack dimension into a global
// integer slice, fetching member labels only when a label Range demands it.
func (s *Stack) resolveStackSlice(coord Coordinate, index Index) (Slice, error) {
	norm, err := NormalizeIndex(coord, index)
	if err != nil {
		return Slice{}, err
	}
	switch v := norm.(type) {
	case Slice:
		return v, nil
	case Range:
		labels, err := s.allLabels()
		if err != nil {
			return Slice{}, err
		}
		return RangeToIndex(labels, v), nil
	default:
		return Slice{}, errors.Wrapf(ErrUnsupportedIndex, "index kind %T", norm)
	}
}

// allLabels concatenates every member's stack-dimension labels.
func (s *Stack) allLabels() ([]float64, error) {
	coord := s.coords[s.dim]
	labels := make([]float64, 0, coord.Length)
	for i, u := range s.units {
		part, _, err := u.Coord(s.dim, nil)
		if err != nil {
			return nil, errors.WithMessagef(err, "stack member %d", i)
		}
		labels = append(labels, part...)
	}
	return labels, nil
}

// memberWindow intersects the global stack slice with member i's coverage
// and returns the member-local window.
func (s *Stack) memberWindow(i int, sl Slice) (lo, hi int, ok bool) {
	off := s.offsets[i]
	length := s.units[i].Coordinates()[s.dim].Length
	lo = sl.Start - off
	hi = sl.Stop - off
	if lo < 0 {
		lo = 0
	}
	if hi > length {
		hi = length
	}
	if lo >= hi {
		return 0, 0, false
	}
	return lo, hi, true
}
