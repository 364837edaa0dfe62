package datacube

import (
	"github.com/ctessum/sparse"
	"github.com/pkg/errors"
)

// StorageUnit is one physically addressable chunk of data (a file, an
// in-memory block, or a zero-copy proxy over other units) together with
// its coordinate and variable metadata.
//
// Implementations must keep the returned metadata maps immutable after
// construction.
type StorageUnit interface {
	// Coordinates returns the unit's dimensions.
	Coordinates() map[string]Coordinate

	// Variables returns the unit's data arrays.
	Variables() map[string]Variable

	// Coord resolves index against one dimension and returns the selected
	// label array along with the resolved integer slice. A nil index
	// selects the full extent.
	Coord(dim string, index Index) ([]float64, Slice, error)

	// FillData writes the block of variable selected by index into dest.
	// index must contain one normalized step-1 slice per variable
	// dimension, in order, and dest must hold exactly the implied element
	// count.
	FillData(variable string, index []Slice, dest []float64) error
}

// CRSHolder is implemented by storage units that know the coordinate
// reference system their spatial dimensions are expressed in.
type CRSHolder interface {
	CRS() string
}

// StorageCRS returns the unit's CRS, or "" when it does not declare one.
func StorageCRS(u StorageUnit) string {
	if h, ok := u.(CRSHolder); ok {
		return h.CRS()
	}
	return ""
}

// Get reads variable from u, restricted by the per-dimension selection, and
// returns the result as a labelled array. Dimensions absent from selection
// are read in full.
func Get(u StorageUnit, variable string, selection map[string]Index) (*Array, error) {
	return GetInto(u, variable, selection, nil)
}

// GetInto is Get with a caller-supplied destination buffer. dest may be nil,
// in which case a buffer is allocated; otherwise its length must match the
// selected shape exactly.
func GetInto(u StorageUnit, variable string, selection map[string]Index, dest []float64) (*Array, error) {
	v, ok := u.Variables()[variable]
	if !ok {
		return nil, errors.Wrap(ErrUnknownVariable, variable)
	}

	index := make([]Slice, len(v.Dimensions))
	labels := make(map[string][]float64, len(v.Dimensions))
	for i, dim := range v.Dimensions {
		dimLabels, sl, err := u.Coord(dim, selection[dim])
		if err != nil {
			return nil, errors.WithMessagef(err, "resolving dimension %s", dim)
		}
		index[i] = sl
		labels[dim] = dimLabels
	}

	shape, err := IndexShape(index)
	if err != nil {
		return nil, err
	}
	data := sparse.ZerosDense(shape...)
	buf := data.Elements
	if dest != nil {
		if len(dest) != len(data.Elements) {
			return nil, errors.Errorf("destination holds %d elements, selection needs %d",
				len(dest), len(data.Elements))
		}
		buf = dest
	}

	if err := u.FillData(variable, index, buf); err != nil {
		return nil, errors.WithMessagef(err, "filling %s", variable)
	}
	if dest != nil {
		copy(data.Elements, dest)
	}
	return &Array{
		Data:   data,
		Dims:   append([]string(nil), v.Dimensions...),
		Labels: labels,
	}, nil
}

// selectLabels resolves an Index against a full label array. Shared by the
// concrete units and the proxies.
func selectLabels(coord Coordinate, labels []float64, index Index) ([]float64, Slice, error) {
	norm, err := NormalizeIndex(coord, index)
	if err != nil {
		return nil, Slice{}, err
	}
	var sl Slice
	switch v := norm.(type) {
	case Range:
		sl = RangeToIndex(labels, v)
	case Slice:
		sl = v
	default:
		return nil, Slice{}, errors.Wrapf(ErrUnsupportedIndex, "index kind %T", norm)
	}
	return labels[sl.Start:sl.Stop], sl, nil
}
