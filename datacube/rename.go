package datacube

import "github.com/pkg/errors"

// Rename is a zero-copy proxy exposing another unit's variables under
// different names. Coordinate calls pass through unchanged.
type Rename struct {
	inner   StorageUnit
	vars    map[string]Variable
	toInner map[string]string
}

var _ StorageUnit = (*Rename)(nil)

// NewRename wraps inner, renaming variables per mapping (inner name to
// exposed name). Variables absent from mapping keep their names.
func NewRename(inner StorageUnit, mapping map[string]string) (*Rename, error) {
	r := &Rename{
		inner:   inner,
		vars:    make(map[string]Variable),
		toInner: make(map[string]string),
	}
	for name, v := range inner.Variables() {
		exposed := name
		if renamed, ok := mapping[name]; ok {
			exposed = renamed
		}
		if _, dup := r.toInner[exposed]; dup {
			return nil, errors.Errorf("rename maps two variables to %s", exposed)
		}
		r.vars[exposed] = v
		r.toInner[exposed] = name
	}
	for name := range mapping {
		if _, ok := inner.Variables()[name]; !ok {
			return nil, errors.Wrap(ErrUnknownVariable, name)
		}
	}
	return r, nil
}

func (r *Rename) Coordinates() map[string]Coordinate { return r.inner.Coordinates() }

func (r *Rename) Variables() map[string]Variable { return r.vars }

// CRS forwards the inner unit's CRS.
func (r *Rename) CRS() string { return StorageCRS(r.inner) }

func (r *Rename) Coord(dim string, index Index) ([]float64, Slice, error) {
	return r.inner.Coord(dim, index)
}

func (r *Rename) FillData(variable string, index []Slice, dest []float64) error {
	inner, ok := r.toInner[variable]
	if !ok {
		return errors.Wrap(ErrUnknownVariable, variable)
	}
	return r.inner.FillData(inner, index, dest)
}
