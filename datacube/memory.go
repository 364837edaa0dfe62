package datacube

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/gridspatial/go-datacube/internal/dtype"
)

// unitCore carries the coordinate/variable bookkeeping shared by the
// concrete units.
type unitCore struct {
	coords map[string]Coordinate
	labels map[string][]float64
	vars   map[string]Variable
	crs    string
}

func newUnitCore() unitCore {
	return unitCore{
		coords: make(map[string]Coordinate),
		labels: make(map[string][]float64),
		vars:   make(map[string]Variable),
	}
}

func (c *unitCore) Coordinates() map[string]Coordinate { return c.coords }

func (c *unitCore) Variables() map[string]Variable { return c.vars }

// CRS returns the unit's coordinate reference system, if declared.
func (c *unitCore) CRS() string { return c.crs }

func (c *unitCore) Coord(dim string, index Index) ([]float64, Slice, error) {
	coord, ok := c.coords[dim]
	if !ok {
		return nil, Slice{}, errors.Wrap(ErrMissingDimension, dim)
	}
	return selectLabels(coord, c.labels[dim], index)
}

// addCoordinate registers a dimension from its explicit label array.
func (c *unitCore) addCoordinate(name string, labels []float64, kind dtype.Kind, units string) error {
	if len(labels) == 0 {
		return errors.Errorf("coordinate %s has no labels", name)
	}
	c.coords[name] = Coordinate{
		Dtype:  kind,
		Begin:  labels[0],
		End:    labels[len(labels)-1],
		Length: len(labels),
		Units:  units,
	}
	c.labels[name] = append([]float64(nil), labels...)
	return nil
}

// checkVariable validates a variable's dimensions against the registered
// coordinates and returns its full shape.
func (c *unitCore) checkVariable(v Variable) ([]int, error) {
	shape := make([]int, len(v.Dimensions))
	for i, dim := range v.Dimensions {
		coord, ok := c.coords[dim]
		if !ok {
			return nil, errors.Wrap(ErrMissingDimension, dim)
		}
		shape[i] = coord.Length
	}
	return shape, nil
}

// checkFillIndex validates a FillData request and returns its shape.
func checkFillIndex(u StorageUnit, variable string, index []Slice, dest []float64) (Variable, []int, error) {
	v, ok := u.Variables()[variable]
	if !ok {
		return Variable{}, nil, errors.Wrap(ErrUnknownVariable, variable)
	}
	if len(index) != len(v.Dimensions) {
		return Variable{}, nil, errors.Errorf("variable %s has %d dimensions, index has %d",
			variable, len(v.Dimensions), len(index))
	}
	shape, err := IndexShape(index)
	if err != nil {
		return Variable{}, nil, err
	}
	if len(dest) != shapeSize(shape) {
		return Variable{}, nil, errors.Errorf("destination holds %d elements, index selects %d",
			len(dest), shapeSize(shape))
	}
	return v, shape, nil
}

// MemoryUnit is a storage unit holding its samples in memory, one row-major
// buffer per variable. It doubles as the stand-in for scene files in tests.
type MemoryUnit struct {
	unitCore
	data map[string][]float64
}

var _ StorageUnit = (*MemoryUnit)(nil)

// NewMemoryUnit creates an empty in-memory unit.
func NewMemoryUnit() *MemoryUnit {
	return &MemoryUnit{unitCore: newUnitCore(), data: make(map[string][]float64)}
}

// SetCRS declares the coordinate reference system of the unit's spatial
// dimensions.
func (u *MemoryUnit) SetCRS(crs string) { u.crs = crs }

// AddCoordinate registers a dimension with explicit labels.
func (u *MemoryUnit) AddCoordinate(name string, labels []float64, kind dtype.Kind, units string) error {
	return u.addCoordinate(name, labels, kind, units)
}

// AddVariable registers a variable together with its full row-major sample
// buffer. Every dimension must already be registered and data must hold
// exactly the variable's full shape.
func (u *MemoryUnit) AddVariable(name string, v Variable, data []float64) error {
	shape, err := u.checkVariable(v)
	if err != nil {
		return errors.WithMessagef(err, "variable %s", name)
	}
	if len(data) != shapeSize(shape) {
		return errors.Errorf("variable %s: data holds %d elements, shape needs %d",
			name, len(data), shapeSize(shape))
	}
	u.vars[name] = v
	u.data[name] = append([]float64(nil), data...)
	return nil
}

// FillData copies the selected block of variable into dest.
func (u *MemoryUnit) FillData(variable string, index []Slice, dest []float64) error {
	v, shape, err := checkFillIndex(u, variable, index, dest)
	if err != nil {
		return err
	}
	fullShape := make([]int, len(v.Dimensions))
	srcOff := make([]int, len(index))
	for i, dim := range v.Dimensions {
		fullShape[i] = u.coords[dim].Length
		srcOff[i] = index[i].Start
	}
	copyBlock(dest, shape, make([]int, len(shape)), u.data[variable], fullShape, srcOff, shape)
	return nil
}

// FillFunc generates the samples for one FillData request of a
// GeneratedUnit.
type FillFunc func(variable string, index []Slice, dest []float64) error

// GeneratedUnit is a storage unit whose samples are produced on demand by a
// callback instead of being read from anywhere.
type GeneratedUnit struct {
	unitCore
	fill FillFunc
}

var _ StorageUnit = (*GeneratedUnit)(nil)

// NewGeneratedUnit creates a unit backed by fill.
func NewGeneratedUnit(fill FillFunc) *GeneratedUnit {
	return &GeneratedUnit{unitCore: newUnitCore(), fill: fill}
}

// SetCRS declares the coordinate reference system of the unit's spatial
// dimensions.
func (u *GeneratedUnit) SetCRS(crs string) { u.crs = crs }

// AddCoordinate registers a dimension with explicit labels.
func (u *GeneratedUnit) AddCoordinate(name string, labels []float64, kind dtype.Kind, units string) error {
	return u.addCoordinate(name, labels, kind, units)
}

// AddRegularCoordinate registers a dimension with n evenly spaced labels
// starting at begin.
func (u *GeneratedUnit) AddRegularCoordinate(name string, begin, step float64, n int, kind dtype.Kind, units string) error {
	if n <= 0 {
		return errors.Errorf("coordinate %s has no labels", name)
	}
	labels := make([]float64, n)
	if n == 1 {
		labels[0] = begin
	} else {
		floats.Span(labels, begin, begin+step*float64(n-1))
	}
	return u.addCoordinate(name, labels, kind, units)
}

// AddVariable registers a variable; its samples come from the fill
// callback.
func (u *GeneratedUnit) AddVariable(name string, v Variable) error {
	if _, err := u.checkVariable(v); err != nil {
		return errors.WithMessagef(err, "variable %s", name)
	}
	u.vars[name] = v
	return nil
}

// FillData delegates to the unit's fill callback after validating the
// request.
func (u *GeneratedUnit) FillData(variable string, index []Slice, dest []float64) error {
	if _, _, err := checkFillIndex(u, variable, index, dest); err != nil {
		return err
	}
	return u.fill(variable, index, dest)
}
