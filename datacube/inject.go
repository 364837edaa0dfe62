package datacube

import (
	"github.com/pkg/errors"

	"github.com/gridspatial/go-datacube/internal/dtype"
)

// InjectedDim declares one synthetic length-1 dimension with a fixed label,
// typically the acquisition time of a single-scene file.
type InjectedDim struct {
	Name  string
	Label float64
	Kind  dtype.Kind
	Units string
}

// DimInject is a zero-copy proxy prepending synthetic length-1 dimensions
// to every variable of the inner unit, turning e.g. a 2-D per-scene unit
// into a 3-D time-indexed one.
type DimInject struct {
	inner    StorageUnit
	injected []InjectedDim
	coords   map[string]Coordinate
	vars     map[string]Variable
}

var _ StorageUnit = (*DimInject)(nil)

// NewDimInject wraps inner with the given synthetic leading dimensions, in
// order.
func NewDimInject(inner StorageUnit, dims ...InjectedDim) (*DimInject, error) {
	if len(dims) == 0 {
		return nil, errors.New("no dimensions to inject")
	}
	p := &DimInject{
		inner:    inner,
		injected: append([]InjectedDim(nil), dims...),
		coords:   make(map[string]Coordinate),
		vars:     make(map[string]Variable),
	}
	for name, c := range inner.Coordinates() {
		p.coords[name] = c
	}
	prefix := make([]string, len(dims))
	for i, d := range dims {
		if _, exists := p.coords[d.Name]; exists {
			return nil, errors.Errorf("injected dimension %s already exists", d.Name)
		}
		p.coords[d.Name] = Coordinate{
			Dtype:  d.Kind,
			Begin:  d.Label,
			End:    d.Label,
			Length: 1,
			Units:  d.Units,
		}
		prefix[i] = d.Name
	}
	for name, v := range inner.Variables() {
		nv := v
		nv.Dimensions = append(append([]string(nil), prefix...), v.Dimensions...)
		p.vars[name] = nv
	}
	return p, nil
}

func (p *DimInject) Coordinates() map[string]Coordinate { return p.coords }

func (p *DimInject) Variables() map[string]Variable { return p.vars }

// CRS forwards the inner unit's CRS.
func (p *DimInject) CRS() string { return StorageCRS(p.inner) }

func (p *DimInject) Coord(dim string, index Index) ([]float64, Slice, error) {
	for _, d := range p.injected {
		if d.Name == dim {
			return selectLabels(p.coords[dim], []float64{d.Label}, index)
		}
	}
	return p.inner.Coord(dim, index)
}

// FillData strips the injected leading slices and forwards the rest to the
// inner unit. A zero-length slice along any injected dimension selects
// nothing, so the request returns immediately without touching the inner
// unit.
func (p *DimInject) FillData(variable string, index []Slice, dest []float64) error {
	if _, _, err := checkFillIndex(p, variable, index, dest); err != nil {
		return err
	}
	for i := range p.injected {
		if index[i].Len() == 0 {
			return nil
		}
		if index[i].Start != 0 || index[i].Stop != 1 {
			return errors.Wrapf(ErrUnsupportedIndex,
				"injected dimension %s has length 1, slice is [%d:%d)",
				p.injected[i].Name, index[i].Start, index[i].Stop)
		}
	}
	return p.inner.FillData(variable, index[len(p.injected):], dest)
}
