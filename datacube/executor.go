package datacube

import (
	"context"
	"runtime"
	"sync"

	"github.com/ctessum/sparse"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Executor realizes chunk graphs into concrete arrays. region optionally
// restricts realization to a sub-window of the virtual array, per
// dimension, in array-offset space; cells the window never touches are not
// executed. A nil region realizes everything.
type Executor interface {
	Submit(ctx context.Context, g *ChunkGraph, region map[string]Slice) (*Array, error)
}

// Sequential executes every task in the calling goroutine.
type Sequential struct{}

var _ Executor = Sequential{}

// Submit realizes g within region, one task at a time.
func (Sequential) Submit(ctx context.Context, g *ChunkGraph, region map[string]Slice) (*Array, error) {
	out, win, err := prepareResult(g, region)
	if err != nil {
		return nil, err
	}
	err = g.EachCell(func(key, origin []int, task Task) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return runCell(g, key, origin, task, win, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Parallel executes independent tasks concurrently. Tasks write disjoint
// regions of the destination, so no synchronization beyond the errgroup is
// needed.
type Parallel struct {
	// Limit bounds concurrently running tasks; 0 means GOMAXPROCS.
	Limit int
}

var _ Executor = Parallel{}

// Submit realizes g within region with bounded fan-out.
func (p Parallel) Submit(ctx context.Context, g *ChunkGraph, region map[string]Slice) (*Array, error) {
	out, win, err := prepareResult(g, region)
	if err != nil {
		return nil, err
	}
	grp, ctx := errgroup.WithContext(ctx)
	limit := p.Limit
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	grp.SetLimit(limit)

	err = g.EachCell(func(key, origin []int, task Task) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		grp.Go(func() error {
			return runCell(g, key, origin, task, win, out)
		})
		return nil
	})
	if err != nil {
		grp.Wait()
		return nil, err
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// prepareResult normalizes the requested region against the graph's shape
// and allocates the labelled destination array.
func prepareResult(g *ChunkGraph, region map[string]Slice) (*Array, []Slice, error) {
	full := g.Shape()
	win := make([]Slice, len(g.Dims()))
	shape := make([]int, len(g.Dims()))
	labels := make(map[string][]float64, len(g.Dims()))
	for d, dim := range g.Dims() {
		sl := NewSlice(0, full[d])
		if r, ok := region[dim]; ok {
			norm, err := NormalizeIndex(Coordinate{Length: full[d]}, r)
			if err != nil {
				return nil, nil, errors.WithMessagef(err, "region for dimension %s", dim)
			}
			sl = norm.(Slice)
		}
		win[d] = sl
		shape[d] = sl.Len()
		labels[dim] = g.Labels(dim)[sl.Start:sl.Stop]
	}
	out := &Array{
		Data:   sparse.ZerosDense(shape...),
		Dims:   append([]string(nil), g.Dims()...),
		Labels: labels,
	}
	return out, win, nil
}

// runCell executes one graph cell, clipped to the realization window, and
// writes the result into out.
func runCell(g *ChunkGraph, key, origin []int, task Task, win []Slice, out *Array) error {
	n := len(key)
	cellShape := g.cellShape(key)

	local := make([]Slice, n)  // window within the cell
	dstOff := make([]int, n)   // placement within the destination
	copyShape := make([]int, n)
	for d := 0; d < n; d++ {
		lo := max(origin[d], win[d].Start)
		hi := min(origin[d]+cellShape[d], win[d].Stop)
		if lo >= hi {
			return nil // cell entirely outside the window
		}
		local[d] = NewSlice(lo-origin[d], hi-origin[d])
		dstOff[d] = lo - win[d].Start
		copyShape[d] = hi - lo
	}

	dstShape := out.Shape()
	switch t := task.(type) {
	case FillTask:
		fillBlock(out.Data.Elements, dstShape, dstOff, copyShape, t.Value)
		return nil
	case FetchTask:
		buf := make([]float64, shapeSize(copyShape))
		if err := t.Unit.FillData(t.Variable, local, buf); err != nil {
			return errors.WithMessagef(err, "fetching cell %v", key)
		}
		copyBlock(out.Data.Elements, dstShape, dstOff, buf, copyShape, make([]int, n), copyShape)
		return nil
	default:
		return errors.Errorf("unknown task kind %T", task)
	}
}

// Handle tracks one asynchronous realization.
type Handle struct {
	done  chan struct{}
	array *Array
	err   error
}

// Wait blocks until the realization finishes and returns its result.
func (h *Handle) Wait() (*Array, error) {
	<-h.done
	return h.array, h.err
}

// SubmitAsync starts realizing g on exec in the background and returns a
// Handle for the result.
func SubmitAsync(ctx context.Context, exec Executor, g *ChunkGraph, region map[string]Slice) *Handle {
	h := &Handle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.array, h.err = exec.Submit(ctx, g, region)
	}()
	return h
}

// AsCompleted returns a channel yielding each handle as its realization
// finishes. The channel closes once every handle has been delivered.
func AsCompleted(handles []*Handle) <-chan *Handle {
	out := make(chan *Handle)
	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h *Handle) {
			defer wg.Done()
			<-h.done
			out <- h
		}(h)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
