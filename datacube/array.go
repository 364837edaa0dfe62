package datacube

import (
	"github.com/ctessum/sparse"
	"github.com/pkg/errors"
)

// Array is a realized, labelled result: a dense n-dimensional block plus the
// coordinate labels of each dimension.
type Array struct {
	Data   *sparse.DenseArray
	Dims   []string
	Labels map[string][]float64
}

// Shape returns the array's extent per dimension.
func (a *Array) Shape() []int {
	return a.Data.Shape
}

// Value returns the element at the given per-dimension offsets.
func (a *Array) Value(index ...int) float64 {
	return a.Data.Get(index...)
}

// Sel returns the sub-array selected by the per-dimension indexes, by label
// range or by offset. Dimensions absent from selection are kept whole. This
// is the post-filter applied after a chunk graph has been realized.
func (a *Array) Sel(selection map[string]Index) (*Array, error) {
	slices := make([]Slice, len(a.Dims))
	for i, dim := range a.Dims {
		labels := a.Labels[dim]
		coord := Coordinate{Length: len(labels)}
		if len(labels) > 0 {
			coord.Begin, coord.End = labels[0], labels[len(labels)-1]
		}
		_, sl, err := selectLabels(coord, labels, selection[dim])
		if err != nil {
			return nil, errors.WithMessagef(err, "selecting dimension %s", dim)
		}
		slices[i] = sl
	}

	shape, err := IndexShape(slices)
	if err != nil {
		return nil, err
	}
	out := &Array{
		Data:   sparse.ZerosDense(shape...),
		Dims:   append([]string(nil), a.Dims...),
		Labels: make(map[string][]float64, len(a.Dims)),
	}
	srcOff := make([]int, len(slices))
	for i, dim := range a.Dims {
		out.Labels[dim] = a.Labels[dim][slices[i].Start:slices[i].Stop]
		srcOff[i] = slices[i].Start
	}
	copyBlock(out.Data.Elements, shape, make([]int, len(shape)),
		a.Data.Elements, a.Shape(), srcOff, shape)
	return out, nil
}

// copyBlock copies a rectangular block of extent copyShape from src (shape
// srcShape, block origin srcOff) into dst (shape dstShape, block origin
// dstOff). Both buffers are row-major.
func copyBlock(dst []float64, dstShape, dstOff []int, src []float64, srcShape, srcOff, copyShape []int) {
	if len(copyShape) == 0 {
		if len(src) > 0 && len(dst) > 0 {
			dst[0] = src[0]
		}
		return
	}
	if shapeSize(copyShape) == 0 {
		return
	}
	dstStrides := rowMajorStrides(dstShape)
	srcStrides := rowMajorStrides(srcShape)

	// Walk every row of the block; rows are contiguous in both buffers.
	last := len(copyShape) - 1
	rowLen := copyShape[last]
	idx := make([]int, last)
	for {
		d := dstOff[last]
		s := srcOff[last]
		for i := 0; i < last; i++ {
			d += (dstOff[i] + idx[i]) * dstStrides[i]
			s += (srcOff[i] + idx[i]) * srcStrides[i]
		}
		copy(dst[d:d+rowLen], src[s:s+rowLen])

		// Advance the outer index odometer.
		i := last - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < copyShape[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			break
		}
	}
}

// fillBlock writes value over a rectangular block of extent shape in dst
// (shape dstShape, origin dstOff).
func fillBlock(dst []float64, dstShape, dstOff, shape []int, value float64) {
	if len(shape) == 0 {
		if len(dst) > 0 {
			dst[0] = value
		}
		return
	}
	if shapeSize(shape) == 0 {
		return
	}
	strides := rowMajorStrides(dstShape)
	last := len(shape) - 1
	rowLen := shape[last]
	idx := make([]int, last)
	for {
		d := dstOff[last]
		for i := 0; i < last; i++ {
			d += (dstOff[i] + idx[i]) * strides[i]
		}
		for j := d; j < d+rowLen; j++ {
			dst[j] = value
		}
		i := last - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < shape[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			break
		}
	}
}

// rowMajorStrides returns the element stride of each dimension.
func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}
