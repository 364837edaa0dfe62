package datacube

import "github.com/pkg/errors"

// IrregularSlice is a zero-copy proxy exposing a contiguous index window of
// one unit's irregular dimension as if it were a complete, independent
// unit. The stratifier emits these to split units at run boundaries.
type IrregularSlice struct {
	inner  StorageUnit
	dim    string
	start  int
	stop   int
	labels []float64 // window into the inner dimension's labels
	coords map[string]Coordinate
}

var _ StorageUnit = (*IrregularSlice)(nil)

// NewIrregularSlice exposes inner's [start, stop) window along dim. labels
// is the inner dimension's complete label array, passed in by the caller so
// construction performs no I/O.
func NewIrregularSlice(inner StorageUnit, dim string, start, stop int, labels []float64) (*IrregularSlice, error) {
	coord, ok := inner.Coordinates()[dim]
	if !ok {
		return nil, errors.Wrap(ErrMissingDimension, dim)
	}
	if len(labels) != coord.Length {
		return nil, errors.Errorf("label array has %d entries, coordinate %s has %d",
			len(labels), dim, coord.Length)
	}
	if start < 0 || stop > coord.Length || start >= stop {
		return nil, errors.Errorf("window [%d:%d) out of bounds for %s of length %d",
			start, stop, dim, coord.Length)
	}

	p := &IrregularSlice{
		inner:  inner,
		dim:    dim,
		start:  start,
		stop:   stop,
		labels: append([]float64(nil), labels[start:stop]...),
		coords: make(map[string]Coordinate),
	}
	for name, c := range inner.Coordinates() {
		p.coords[name] = c
	}
	p.coords[dim] = Coordinate{
		Dtype:  coord.Dtype,
		Begin:  p.labels[0],
		End:    p.labels[len(p.labels)-1],
		Length: stop - start,
		Units:  coord.Units,
	}
	return p, nil
}

func (p *IrregularSlice) Coordinates() map[string]Coordinate { return p.coords }

func (p *IrregularSlice) Variables() map[string]Variable { return p.inner.Variables() }

// CRS forwards the inner unit's CRS.
func (p *IrregularSlice) CRS() string { return StorageCRS(p.inner) }

func (p *IrregularSlice) Coord(dim string, index Index) ([]float64, Slice, error) {
	if dim != p.dim {
		return p.inner.Coord(dim, index)
	}
	return selectLabels(p.coords[dim], p.labels, index)
}

// FillData shifts the sliced dimension's offsets into the inner unit's
// index space and forwards the request.
func (p *IrregularSlice) FillData(variable string, index []Slice, dest []float64) error {
	v, _, err := checkFillIndex(p, variable, index, dest)
	if err != nil {
		return err
	}
	inner := make([]Slice, len(index))
	copy(inner, index)
	for i, dim := range v.Dimensions {
		if dim == p.dim {
			inner[i] = NewSlice(index[i].Start+p.start, index[i].Stop+p.start)
		}
	}
	return p.inner.FillData(variable, inner, dest)
}
