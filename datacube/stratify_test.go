package datacube

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridspatial/go-datacube/internal/dtype"
)

// timeLabels reads a unit's full time label array for assertions.
func timeLabels(t *testing.T, u StorageUnit) []float64 {
	t.Helper()
	labels, _, err := u.Coord("time", nil)
	require.NoError(t, err)
	return labels
}

func TestStratifyDisjointUnitsUntouched(t *testing.T) {
	a := timeBlock(t, []float64{10, 20}, []float64{0, 1, 2, 3})
	b := timeBlock(t, []float64{30, 40}, []float64{4, 5, 6, 7})

	out, err := Stratify([]StorageUnit{a, b}, "time")
	require.NoError(t, err)
	require.Len(t, out, 2)
	// Single-run units pass through unsliced.
	assert.Same(t, StorageUnit(a), out[0])
	assert.Same(t, StorageUnit(b), out[1])
}

func TestStratifySplitsAtCoverageChange(t *testing.T) {
	// a covers {10,20,30}, b covers {20,30,40}: runs are {10}, {20,30}, {40}.
	a := timeBlock(t, []float64{10, 20, 30}, []float64{0, 1, 2, 3, 4, 5})
	b := timeBlock(t, []float64{20, 30, 40}, []float64{6, 7, 8, 9, 10, 11})

	out, err := Stratify([]StorageUnit{a, b}, "time")
	require.NoError(t, err)
	require.Len(t, out, 4)

	assert.Equal(t, []float64{10}, timeLabels(t, out[0]))
	assert.Equal(t, []float64{20, 30}, timeLabels(t, out[1]))
	assert.Equal(t, []float64{20, 30}, timeLabels(t, out[2]))
	assert.Equal(t, []float64{40}, timeLabels(t, out[3]))

	// Slices read through to the right rows of their parents.
	arr, err := Get(out[2], "v", nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 7, 8, 9}, arr.Data.Elements)
	arr, err = Get(out[3], "v", nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11}, arr.Data.Elements)
}

// Stratification invariant: the outputs cover exactly the inputs' values,
// and any two outputs have identical or disjoint value-sets.
func TestStratifyInvariant(t *testing.T) {
	units := []StorageUnit{
		timeBlock(t, []float64{1, 2, 3, 4}, make([]float64, 8)),
		timeBlock(t, []float64{3, 4, 5}, make([]float64, 6)),
		timeBlock(t, []float64{5, 6}, make([]float64, 4)),
		timeBlock(t, []float64{2, 3, 4}, make([]float64, 6)),
	}

	out, err := Stratify(units, "time")
	require.NoError(t, err)

	wantCount := map[float64]int{}
	for _, u := range units {
		for _, v := range timeLabels(t, u) {
			wantCount[v]++
		}
	}
	gotCount := map[float64]int{}
	sets := make([][]float64, len(out))
	for i, u := range out {
		sets[i] = timeLabels(t, u)
		for _, v := range sets[i] {
			gotCount[v]++
		}
	}
	assert.Equal(t, wantCount, gotCount, "values must be preserved exactly")

	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			assert.True(t, identicalOrDisjoint(sets[i], sets[j]),
				"sets %v and %v are neither identical nor disjoint", sets[i], sets[j])
		}
	}
}

func identicalOrDisjoint(a, b []float64) bool {
	if len(a) == len(b) {
		same := true
		for i := range a {
			if a[i] != b[i] {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	in := make(map[float64]bool, len(a))
	for _, v := range a {
		in[v] = true
	}
	for _, v := range b {
		if in[v] {
			return false
		}
	}
	return true
}

func TestStratifyEmpty(t *testing.T) {
	out, err := Stratify(nil, "time")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestStratifySingleUnit(t *testing.T) {
	u := timeBlock(t, []float64{10, 20, 30}, make([]float64, 6))
	out, err := Stratify([]StorageUnit{u}, "time")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Same(t, StorageUnit(u), out[0])
}

func TestStratifyThenStack(t *testing.T) {
	// After stratification, units with disjoint runs can be stacked.
	a := timeBlock(t, []float64{10, 20, 30}, []float64{0, 1, 2, 3, 4, 5})
	out, err := Stratify([]StorageUnit{a, timeBlock(t, []float64{10}, []float64{9, 9})}, "time")
	require.NoError(t, err)
	require.Len(t, out, 3)

	// out[1] is a's {20,30} window, out[2] is the single-value unit at 10.
	s, err := NewStack("time", out[2], out[1])
	require.NoError(t, err)
	arr, err := Get(s, "v", nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30}, arr.Labels["time"])
	assert.Equal(t, []float64{9, 9, 2, 3, 4, 5}, arr.Data.Elements)
}

func TestStratifyNoTimeDimension(t *testing.T) {
	u := NewMemoryUnit()
	require.NoError(t, u.AddCoordinate("x", []float64{0}, dtype.Float64, ""))
	_, err := Stratify([]StorageUnit{u}, "time")
	assert.Error(t, err)
}
