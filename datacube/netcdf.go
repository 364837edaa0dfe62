package datacube

import (
	"math"
	"sync"

	"github.com/pkg/errors"

	"github.com/gridspatial/go-datacube/internal/backend"
	"github.com/gridspatial/go-datacube/internal/backend/ncdf"
)

// FileCache owns the open file handles behind backend-backed storage
// units. It is scoped: create one per session or query batch and Close it
// when done. Handles open lazily and the least recently used one is closed
// when the cache is full.
type FileCache struct {
	cache *backend.Cache
}

// NewFileCache creates a cache holding at most maxHandles open files;
// maxHandles <= 0 selects a default.
func NewFileCache(maxHandles int) *FileCache {
	return &FileCache{cache: backend.NewCache(ncdf.Open, maxHandles)}
}

// Close closes every handle the cache still holds.
func (fc *FileCache) Close() error {
	return fc.cache.Close()
}

// OpenNetCDF opens a NetCDF file as a storage unit. The file's metadata is
// read once, eagerly; sample blocks are fetched on demand through the
// cache.
func (fc *FileCache) OpenNetCDF(path string) (StorageUnit, error) {
	info, err := ncdf.Describe(path)
	if err != nil {
		return nil, err
	}
	d := Descriptor{
		Coordinates: make(map[string]Coordinate, len(info.Coordinates)),
		Variables:   make(map[string]Variable, len(info.Variables)),
		CRS:         info.CRS,
		Locator:     path,
	}
	for name, c := range info.Coordinates {
		d.Coordinates[name] = Coordinate{
			Dtype:  c.Kind,
			Begin:  c.Begin,
			End:    c.End,
			Length: c.Length,
			Units:  c.Units,
		}
	}
	for name, v := range info.Variables {
		nv := Variable{
			Dtype:      v.Kind,
			Nodata:     v.Nodata,
			Dimensions: v.Dimensions,
			Units:      v.Units,
		}
		if !v.HasNodata {
			nv.Nodata = math.NaN()
		}
		d.Variables[name] = nv
	}
	return fc.UnitFromDescriptor(d)
}

// UnitFromDescriptor builds a storage unit from a catalog descriptor. The
// descriptor's coordinates and variables are trusted as-is; data and
// coordinate labels are fetched lazily through the cache.
func (fc *FileCache) UnitFromDescriptor(d Descriptor) (StorageUnit, error) {
	for name, v := range d.Variables {
		for _, dim := range v.Dimensions {
			if _, ok := d.Coordinates[dim]; !ok {
				return nil, errors.Wrapf(ErrMissingDimension, "%s of variable %s", dim, name)
			}
		}
	}
	return &backendUnit{
		cache:   fc.cache,
		locator: d.Locator,
		coords:  d.Coordinates,
		vars:    d.Variables,
		crs:     d.CRS,
		labels:  make(map[string][]float64),
	}, nil
}

// backendUnit is a storage unit whose labels and samples come through the
// backend fetch interface.
type backendUnit struct {
	cache   *backend.Cache
	locator string
	coords  map[string]Coordinate
	vars    map[string]Variable
	crs     string

	mu     sync.Mutex
	labels map[string][]float64
}

var _ StorageUnit = (*backendUnit)(nil)
var _ CRSHolder = (*backendUnit)(nil)

func (u *backendUnit) Coordinates() map[string]Coordinate { return u.coords }

func (u *backendUnit) Variables() map[string]Variable { return u.vars }

func (u *backendUnit) CRS() string { return u.crs }

// Coord fetches (and caches) the dimension's label array, then resolves
// index against it. Label arrays are metadata-sized, so caching them per
// unit keeps graph construction from re-reading files.
func (u *backendUnit) Coord(dim string, index Index) ([]float64, Slice, error) {
	coord, ok := u.coords[dim]
	if !ok {
		return nil, Slice{}, errors.Wrap(ErrMissingDimension, dim)
	}
	labels, err := u.coordLabels(dim, coord)
	if err != nil {
		return nil, Slice{}, err
	}
	return selectLabels(coord, labels, index)
}

func (u *backendUnit) coordLabels(dim string, coord Coordinate) ([]float64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if labels, ok := u.labels[dim]; ok {
		return labels, nil
	}
	h, err := u.cache.Get(u.locator)
	if err != nil {
		return nil, err
	}
	labels, err := h.ReadCoordinate(dim)
	if err != nil {
		return nil, err
	}
	if len(labels) != coord.Length {
		return nil, errors.Errorf("coordinate %s of %s has %d labels, descriptor says %d",
			dim, u.locator, len(labels), coord.Length)
	}
	u.labels[dim] = labels
	return labels, nil
}

// FillData reads the selected block through the handle cache. Reads are
// idempotent, so a failed fetch can simply be retried by the executor.
func (u *backendUnit) FillData(variable string, index []Slice, dest []float64) error {
	_, shape, err := checkFillIndex(u, variable, index, dest)
	if err != nil {
		return err
	}
	start := make([]int, len(index))
	for i, sl := range index {
		start[i] = sl.Start
	}
	h, err := u.cache.Get(u.locator)
	if err != nil {
		return err
	}
	block, err := h.ReadBlock(variable, start, shape)
	if err != nil {
		return err
	}
	if len(block) != len(dest) {
		return errors.Errorf("backend returned %d elements for %s, expected %d",
			len(block), variable, len(dest))
	}
	copy(dest, block)
	return nil
}
