package datacube

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gridspatial/go-datacube/internal/dtype"
)

// Task is one cell of a chunk graph: either a fetch from a storage unit or
// a synthetic nodata fill. Tasks are pure and independent of each other, so
// an executor may run them in any order, in parallel, or retry them.
type Task interface {
	isTask()
}

// FetchTask reads one variable block from one storage unit.
type FetchTask struct {
	Unit     StorageUnit
	Variable string
}

func (FetchTask) isTask() {}

// FillTask synthesizes a nodata block for a grid cell no unit covers.
type FillTask struct {
	Shape []int
	Dtype dtype.Kind
	Value float64
}

func (FillTask) isTask() {}

// ChunkGraph is the lazy, addressable task mapping representing a virtual
// array before realization. Cells are keyed by per-dimension ordinals;
// every cell's shape and placement are known without executing anything.
// The graph is never mutated after construction.
type ChunkGraph struct {
	variable string
	meta     Variable
	dims     []string
	grid     []int

	chunkSizes map[string][]int
	offsets    map[string][]int
	labels     map[string][]float64
	reverse    map[string]bool

	tasks []Task // dense, row-major over grid
}

// BuildChunkGraph assembles the chunk graph of variable over one
// direction-consistent signature group of (stratified) storage units. Grid
// cells covered by a unit become fetch tasks; every other cell becomes a
// nodata fill sized from the per-ordinal chunk lengths.
func BuildChunkGraph(units []StorageUnit, variable string, opts ...Option) (*ChunkGraph, error) {
	o := applyOptions(opts)
	if len(units) == 0 {
		return nil, errors.New("no storage units to build a graph from")
	}
	props, keys, err := buildDimProps(units, variable)
	if err != nil {
		return nil, err
	}

	g := &ChunkGraph{
		variable:   variable,
		meta:       units[0].Variables()[variable],
		dims:       props.dims,
		grid:       make([]int, len(props.dims)),
		chunkSizes: props.susSize,
		offsets:    make(map[string][]int, len(props.dims)),
		labels:     make(map[string][]float64, len(props.dims)),
		reverse:    props.reverse,
	}
	for d, dim := range props.dims {
		g.grid[d] = len(props.dimVals[dim])

		offs := make([]int, len(props.susSize[dim]))
		total := 0
		for i, sz := range props.susSize[dim] {
			offs[i] = total
			total += sz
		}
		g.offsets[dim] = offs

		concat := make([]float64, 0, total)
		for _, block := range props.labels[dim] {
			concat = append(concat, block...)
		}
		g.labels[dim] = concat
	}

	g.tasks = make([]Task, shapeSize(g.grid))
	strides := rowMajorStrides(g.grid)
	fetches := 0
	for i, key := range keys {
		idx := linearKey(key, strides)
		if g.tasks[idx] != nil {
			return nil, errors.Wrapf(ErrInconsistentUnits,
				"two units cover grid cell %v", key)
		}
		g.tasks[idx] = FetchTask{Unit: units[i], Variable: variable}
		fetches++
	}

	nodata := g.meta.NodataOrDefault()
	fills := 0
	key := make([]int, len(g.grid))
	for idx := range g.tasks {
		if g.tasks[idx] == nil {
			g.tasks[idx] = FillTask{
				Shape: g.cellShape(key),
				Dtype: g.meta.Dtype,
				Value: nodata,
			}
			fills++
		}
		incrementKey(key, g.grid)
	}
	o.log.Debug("built chunk graph",
		zap.String("variable", variable),
		zap.Ints("grid", g.grid),
		zap.Int("fetchTasks", fetches),
		zap.Int("fillTasks", fills))
	return g, nil
}

// Variable returns the variable the graph realizes.
func (g *ChunkGraph) Variable() string { return g.variable }

// Meta returns the variable's schema.
func (g *ChunkGraph) Meta() Variable { return g.meta }

// Dims returns the graph's dimension names, in variable order.
func (g *ChunkGraph) Dims() []string { return g.dims }

// Grid returns the number of ordinals per dimension.
func (g *ChunkGraph) Grid() []int { return g.grid }

// Shape returns the full virtual-array extent per dimension.
func (g *ChunkGraph) Shape() []int {
	shape := make([]int, len(g.dims))
	for d, dim := range g.dims {
		shape[d] = len(g.labels[dim])
	}
	return shape
}

// Labels returns the full concatenated label array of one dimension.
func (g *ChunkGraph) Labels(dim string) []float64 { return g.labels[dim] }

// ChunkSizes returns the per-ordinal chunk length of one dimension.
func (g *ChunkGraph) ChunkSizes(dim string) []int { return g.chunkSizes[dim] }

// TaskAt returns the task of the cell keyed by per-dimension ordinals.
func (g *ChunkGraph) TaskAt(key ...int) Task {
	return g.tasks[linearKey(key, rowMajorStrides(g.grid))]
}

// EachCell calls fn for every cell with its ordinal key, its task, and the
// cell's origin in virtual-array index space. Iteration stops at the first
// error.
func (g *ChunkGraph) EachCell(fn func(key []int, origin []int, task Task) error) error {
	strides := rowMajorStrides(g.grid)
	key := make([]int, len(g.grid))
	origin := make([]int, len(g.grid))
	for range g.tasks {
		for d, dim := range g.dims {
			origin[d] = g.offsets[dim][key[d]]
		}
		if err := fn(append([]int(nil), key...), append([]int(nil), origin...), g.tasks[linearKey(key, strides)]); err != nil {
			return err
		}
		incrementKey(key, g.grid)
	}
	return nil
}

// cellShape returns the shape of the cell keyed by per-dimension ordinals.
func (g *ChunkGraph) cellShape(key []int) []int {
	shape := make([]int, len(g.dims))
	for d, dim := range g.dims {
		shape[d] = g.chunkSizes[dim][key[d]]
	}
	return shape
}

// linearKey flattens an ordinal key by row-major strides.
func linearKey(key, strides []int) int {
	idx := 0
	for i, k := range key {
		idx += k * strides[i]
	}
	return idx
}

// incrementKey advances a row-major odometer over grid.
func incrementKey(key, grid []int) {
	for i := len(key) - 1; i >= 0; i-- {
		key[i]++
		if key[i] < grid[i] {
			return
		}
		key[i] = 0
	}
}
