// Package ncdf adapts the pure-Go NetCDF reader to the backend fetch
// interface. It handles both classic CDF and HDF5-based NetCDF4 files and
// widens every numeric payload to float64.
package ncdf

import (
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/pkg/errors"

	"github.com/gridspatial/go-datacube/internal/backend"
)

// File is an open NetCDF file implementing backend.Fetcher.
type File struct {
	path string
	nc   api.Group
}

var _ backend.Fetcher = (*File)(nil)

// Open opens a NetCDF file. It satisfies backend.Opener.
func Open(path string) (backend.Fetcher, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening netcdf %s", path)
	}
	return &File{path: path, nc: nc}, nil
}

// ReadCoordinate reads a dimension's coordinate variable in full.
func (f *File) ReadCoordinate(dim string) ([]float64, error) {
	vg, err := f.nc.GetVarGetter(dim)
	if err != nil {
		return nil, errors.Wrapf(err, "coordinate %s of %s", dim, f.path)
	}
	v, err := vg.Values()
	if err != nil {
		return nil, errors.Wrapf(err, "reading coordinate %s of %s", dim, f.path)
	}
	var out []float64
	if err := flatten(reflect.ValueOf(v), &out); err != nil {
		return nil, errors.Wrapf(err, "coordinate %s of %s", dim, f.path)
	}
	return out, nil
}

// ReadBlock reads the rectangular window of a variable starting at start
// and spanning count elements per dimension. The reader can only slice the
// outermost dimension, so inner dimensions are windowed in memory.
func (f *File) ReadBlock(variable string, start, count []int) ([]float64, error) {
	vg, err := f.nc.GetVarGetter(variable)
	if err != nil {
		return nil, errors.Wrapf(err, "variable %s of %s", variable, f.path)
	}
	if len(start) != len(count) {
		return nil, errors.Errorf("start/count rank mismatch: %d vs %d", len(start), len(count))
	}
	if len(vg.Dimensions()) != len(start) {
		return nil, errors.Errorf("variable %s has rank %d, index has rank %d",
			variable, len(vg.Dimensions()), len(start))
	}

	n := 1
	for _, c := range count {
		n *= c
	}
	out := make([]float64, 0, n)
	if n == 0 {
		return out, nil
	}

	if len(start) == 0 {
		// Scalar variable.
		v, err := vg.Values()
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s of %s", variable, f.path)
		}
		if err := flatten(reflect.ValueOf(v), &out); err != nil {
			return nil, err
		}
		return out, nil
	}

	v, err := vg.GetSlice(int64(start[0]), int64(start[0]+count[0]))
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s[%d:%d] of %s",
			variable, start[0], start[0]+count[0], f.path)
	}
	rv := reflect.ValueOf(v)
	// The returned value already covers the requested outer range, so the
	// outer window starts at zero.
	if err := window(rv, start, count, 0, &out); err != nil {
		return nil, errors.Wrapf(err, "windowing %s of %s", variable, f.path)
	}
	if len(out) != n {
		return nil, errors.Errorf("read %d elements of %s, expected %d", len(out), variable, n)
	}
	return out, nil
}

// Close closes the underlying reader.
func (f *File) Close() error {
	f.nc.Close()
	return nil
}

// window walks nested slices, selecting [start[d], start[d]+count[d]) along
// each dimension below the first and appending leaves to out. depth 0 is
// the already-sliced outer dimension.
func window(v reflect.Value, start, count []int, depth int, out *[]float64) error {
	if depth == len(start) {
		f, err := widen(v)
		if err != nil {
			return err
		}
		*out = append(*out, f)
		return nil
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return errors.Errorf("expected rank-%d data, ran out of nesting at depth %d", len(start), depth)
	}
	lo, hi := start[depth], start[depth]+count[depth]
	if depth == 0 {
		lo, hi = 0, count[0]
	}
	if hi > v.Len() {
		return errors.Errorf("window [%d:%d) exceeds length %d at depth %d", lo, hi, v.Len(), depth)
	}
	for i := lo; i < hi; i++ {
		if err := window(v.Index(i), start, count, depth+1, out); err != nil {
			return err
		}
	}
	return nil
}

// flatten appends every leaf value of a possibly nested slice to out.
func flatten(v reflect.Value, out *[]float64) error {
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		for i := 0; i < v.Len(); i++ {
			if err := flatten(v.Index(i), out); err != nil {
				return err
			}
		}
		return nil
	}
	f, err := widen(v)
	if err != nil {
		return err
	}
	*out = append(*out, f)
	return nil
}

// widen converts one numeric element to float64.
func widen(v reflect.Value) (float64, error) {
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return float64(v.Int()), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		return float64(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	default:
		return 0, errors.Errorf("non-numeric element type %s", v.Type())
	}
}
