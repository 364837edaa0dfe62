package datacube

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridspatial/go-datacube/internal/dtype"
)

// scene builds one time-stamped 2x2 tile: a (y, x) unit with an injected
// time dimension, the shape scene files arrive in.
func scene(t *testing.T, at float64, yLabels, xLabels, data []float64) StorageUnit {
	t.Helper()
	u := tile(t, yLabels, xLabels, data)
	p, err := NewDimInject(u, InjectedDim{
		Name:  "time",
		Label: at,
		Kind:  dtype.Datetime,
		Units: "seconds since 1970-01-01",
	})
	require.NoError(t, err)
	return p
}

// Two scenes of the same tile at different times realize into one 2x2x2
// cube ordered by time.
func TestRealizeTwoScenes(t *testing.T) {
	units := []StorageUnit{
		scene(t, 200, []float64{0, 1}, []float64{0, 1}, []float64{5, 6, 7, 8}),
		scene(t, 100, []float64{0, 1}, []float64{0, 1}, []float64{1, 2, 3, 4}),
	}
	stratified, err := Stratify(units, "time")
	require.NoError(t, err)

	g, err := BuildChunkGraph(stratified, "band")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2}, g.Shape())
	assert.Equal(t, []float64{100, 200}, g.Labels("time"))

	arr, err := Sequential{}.Submit(context.Background(), g, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2}, arr.Shape())
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8}, arr.Data.Elements)
	assert.Equal(t, []float64{100, 200}, arr.Labels["time"])
}

// A tile missing at one timestamp realizes as nodata, never as an error.
func TestRealizeGapIsNodata(t *testing.T) {
	units := []StorageUnit{
		scene(t, 100, []float64{0, 1}, []float64{0, 1}, []float64{1, 2, 3, 4}),
		scene(t, 200, []float64{0, 1}, []float64{10, 11}, []float64{5, 6, 7, 8}),
	}
	g, err := BuildChunkGraph(units, "band")
	require.NoError(t, err)

	arr, err := Sequential{}.Submit(context.Background(), g, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 4}, arr.Shape())
	assert.Equal(t, []float64{
		1, 2, -999, -999,
		3, 4, -999, -999,
		-999, -999, 5, 6,
		-999, -999, 7, 8,
	}, arr.Data.Elements)
}

func TestParallelMatchesSequential(t *testing.T) {
	units := []StorageUnit{
		scene(t, 100, []float64{0, 1}, []float64{0, 1}, []float64{1, 2, 3, 4}),
		scene(t, 100, []float64{0, 1}, []float64{10, 11}, []float64{5, 6, 7, 8}),
		scene(t, 200, []float64{0, 1}, []float64{0, 1}, []float64{9, 10, 11, 12}),
		scene(t, 300, []float64{0, 1}, []float64{10, 11}, []float64{13, 14, 15, 16}),
	}
	g, err := BuildChunkGraph(units, "band")
	require.NoError(t, err)

	want, err := Sequential{}.Submit(context.Background(), g, nil)
	require.NoError(t, err)
	got, err := Parallel{Limit: 3}.Submit(context.Background(), g, nil)
	require.NoError(t, err)

	assert.Equal(t, want.Shape(), got.Shape())
	assert.Equal(t, want.Data.Elements, got.Data.Elements)
	assert.Equal(t, want.Labels, got.Labels)
}

// A realization window skips cells it never touches and clips the ones it
// straddles.
func TestSubmitRegion(t *testing.T) {
	poison := NewGeneratedUnit(func(string, []Slice, []float64) error {
		t.Error("cell outside the window was fetched")
		return nil
	})
	require.NoError(t, poison.AddCoordinate("y", []float64{0, 1}, dtype.Float64, "metre"))
	require.NoError(t, poison.AddCoordinate("x", []float64{20, 21}, dtype.Float64, "metre"))
	require.NoError(t, poison.AddVariable("band", Variable{
		Dtype:      dtype.Int16,
		Nodata:     -999,
		Dimensions: []string{"y", "x"},
	}))

	units := []StorageUnit{
		tile(t, []float64{0, 1}, []float64{0, 1}, []float64{1, 2, 3, 4}),
		tile(t, []float64{0, 1}, []float64{10, 11}, []float64{5, 6, 7, 8}),
		poison,
	}
	g, err := BuildChunkGraph(units, "band")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 6}, g.Shape())

	arr, err := Sequential{}.Submit(context.Background(), g, map[string]Slice{
		"x": NewSlice(1, 3),
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, arr.Shape())
	assert.Equal(t, []float64{1, 10}, arr.Labels["x"])
	assert.Equal(t, []float64{2, 5, 4, 7}, arr.Data.Elements)
}

func TestSubmitAsync(t *testing.T) {
	units := []StorageUnit{
		tile(t, []float64{0, 1}, []float64{0, 1}, []float64{1, 2, 3, 4}),
	}
	g, err := BuildChunkGraph(units, "band")
	require.NoError(t, err)

	handles := []*Handle{
		SubmitAsync(context.Background(), Parallel{}, g, nil),
		SubmitAsync(context.Background(), Parallel{}, g, map[string]Slice{"y": NewSlice(0, 1)}),
	}
	seen := 0
	for h := range AsCompleted(handles) {
		arr, err := h.Wait()
		require.NoError(t, err)
		assert.NotNil(t, arr)
		seen++
	}
	assert.Equal(t, 2, seen)
}

func TestSubmitCancelled(t *testing.T) {
	units := []StorageUnit{
		tile(t, []float64{0, 1}, []float64{0, 1}, []float64{1, 2, 3, 4}),
	}
	g, err := BuildChunkGraph(units, "band")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Sequential{}.Submit(ctx, g, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

// The full pipeline: a translated date-range query over two scenes comes
// back as a time-ordered cube.
func TestQueryRealizeEndToEnd(t *testing.T) {
	day1 := TimeLabel(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	day2 := TimeLabel(time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC))
	units := []StorageUnit{
		scene(t, day2, []float64{0, 1}, []float64{0, 1}, []float64{5, 6, 7, 8}),
		scene(t, day1, []float64{0, 1}, []float64{0, 1}, []float64{1, 2, 3, 4}),
	}

	sel, err := TranslateQuery(Query{Dims: map[string]DimQuery{
		"time": {Begin: "2020-01-01", End: "2020-01-02"},
	}}, "", units[0].Coordinates())
	require.NoError(t, err)

	stratified, err := Stratify(units, "time")
	require.NoError(t, err)
	groups, err := GroupBySignature(stratified, "band")
	require.NoError(t, err)
	g, err := BuildChunkGraph(LargestGroup(groups), "band")
	require.NoError(t, err)
	arr, err := Parallel{}.Submit(context.Background(), g, nil)
	require.NoError(t, err)

	post := make(map[string]Index, len(sel))
	for dim, ds := range sel {
		post[dim] = ds.Range
	}
	arr, err = arr.Sel(post)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 2}, arr.Shape())
	assert.Equal(t, []float64{day1, day2}, arr.Labels["time"])
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8}, arr.Data.Elements)
}

func TestArraySel(t *testing.T) {
	units := []StorageUnit{
		scene(t, 100, []float64{0, 1}, []float64{0, 1}, []float64{1, 2, 3, 4}),
		scene(t, 200, []float64{0, 1}, []float64{0, 1}, []float64{5, 6, 7, 8}),
	}
	g, err := BuildChunkGraph(units, "band")
	require.NoError(t, err)
	arr, err := Sequential{}.Submit(context.Background(), g, nil)
	require.NoError(t, err)

	sub, err := arr.Sel(map[string]Index{
		"time": Point(200),
		"x":    Range{Begin: 1, End: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 1}, sub.Shape())
	assert.Equal(t, []float64{6, 8}, sub.Data.Elements)
	assert.Equal(t, []float64{200}, sub.Labels["time"])
}
