package datacube

import (
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	longlatProj4 = "+proj=longlat +datum=WGS84 +no_defs"
	webMercProj4 = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +no_defs"
)

func TestTranslateQueryNumeric(t *testing.T) {
	coords := map[string]Coordinate{
		"x": {Begin: 0, End: 100},
		"y": {Begin: 100, End: 0},
	}
	sel, err := TranslateQuery(Query{Dims: map[string]DimQuery{
		"x": {Begin: 10.0, End: 20.0},
		"y": {Point: 50.0},
	}}, "", coords)
	require.NoError(t, err)

	assert.Equal(t, Range{Begin: 10, End: 20}, sel["x"].Range)
	assert.Equal(t, Range{Begin: 50, End: 50}, sel["y"].Range)
}

func TestTranslateQueryAliases(t *testing.T) {
	coords := map[string]Coordinate{
		"longitude": {Begin: -180, End: 180},
		"latitude":  {Begin: 90, End: -90},
		"time":      {},
	}
	sel, err := TranslateQuery(Query{Dims: map[string]DimQuery{
		"lon": {Begin: 10.0, End: 20.0},
		"lat": {Begin: -5.0, End: 5.0},
		"t":   {Begin: 100.0},
	}}, "", coords)
	require.NoError(t, err)

	assert.Contains(t, sel, "longitude")
	assert.Contains(t, sel, "latitude")
	assert.Contains(t, sel, "time")
	assert.Equal(t, 100.0, sel["time"].Range.Begin)
	assert.True(t, math.IsNaN(sel["time"].Range.End))
}

func TestTranslateQueryDuplicateAlias(t *testing.T) {
	_, err := TranslateQuery(Query{Dims: map[string]DimQuery{
		"x":   {Point: 1.0},
		"lon": {Point: 2.0},
	}}, "", nil)
	assert.Error(t, err)
}

// Unknown dimension names pass through untouched so domain-specific axes
// (wavelength, pressure level) keep working.
func TestTranslateQueryUnknownDimension(t *testing.T) {
	sel, err := TranslateQuery(Query{Dims: map[string]DimQuery{
		"wavelength": {Begin: 400.0, End: 700.0},
	}}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, Range{Begin: 400, End: 700}, sel["wavelength"].Range)
}

func TestTranslateQueryArrayRange(t *testing.T) {
	ar := NewSlice(0, 5)
	sel, err := TranslateQuery(Query{Dims: map[string]DimQuery{
		"x": {Begin: 1.0, End: 2.0, ArrayRange: &ar},
	}}, "", map[string]Coordinate{"x": {}})
	require.NoError(t, err)
	require.NotNil(t, sel["x"].ArrayRange)
	assert.Equal(t, ar, *sel["x"].ArrayRange)
}

func TestTemporalRangeScalar(t *testing.T) {
	at := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	sel, err := TranslateQuery(Query{Dims: map[string]DimQuery{
		"time": {Point: at},
	}}, "", nil)
	require.NoError(t, err)

	r := sel["time"].Range
	assert.Equal(t, TimeLabel(at), r.Begin)
	assert.InDelta(t, TimePointEpsilon.Seconds(), r.End-r.Begin, 1e-12)

	// The widened range selects exactly the matching label.
	labels := []float64{TimeLabel(at.Add(-time.Hour)), TimeLabel(at), TimeLabel(at.Add(time.Hour))}
	sl := RangeToIndex(labels, r)
	assert.Equal(t, NewSlice(1, 2), sl)
}

func TestTemporalLabelForms(t *testing.T) {
	want := TimeLabel(time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC))
	tests := []struct {
		name  string
		value interface{}
	}{
		{"time.Time", time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"RFC3339", "2020-06-01T00:00:00Z"},
		{"date only", "2020-06-01"},
		{"space separated", "2020-06-01 00:00:00"},
		{"tuple", []int{2020, 6, 1}},
		{"full tuple", []int{2020, 6, 1, 0, 0, 0}},
		{"epoch seconds", want},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := temporalLabel(tt.value)
			require.NoError(t, err)
			assert.InDelta(t, want, got, 1e-6)
		})
	}

	_, err := temporalLabel("not a time")
	assert.True(t, errors.Is(err, ErrUnsupportedIndex))
	_, err = temporalLabel([]int{2020})
	assert.True(t, errors.Is(err, ErrUnsupportedIndex))
	_, err = temporalLabel(struct{}{})
	assert.True(t, errors.Is(err, ErrUnsupportedIndex))
}

func TestTimeLabelRoundTrip(t *testing.T) {
	at := time.Date(2019, 3, 15, 6, 30, 45, 0, time.UTC)
	assert.True(t, LabelToTime(TimeLabel(at)).Equal(at))
}

func TestTranslateQueryReprojection(t *testing.T) {
	coords := map[string]Coordinate{
		"x": {Begin: 0, End: 2e6},
		"y": {Begin: 7e6, End: 5e6},
	}
	sel, err := TranslateQuery(Query{
		CRS: longlatProj4,
		Dims: map[string]DimQuery{
			"lon": {Begin: 10.0, End: 11.0},
			"lat": {Begin: 50.0, End: 51.0},
		},
	}, webMercProj4, coords)
	require.NoError(t, err)

	xr := sel["x"].Range
	yr := sel["y"].Range
	// Web Mercator x of lon 10..11 at this latitude, within a metre.
	assert.InDelta(t, 1113194.9, xr.Begin, 1.0)
	assert.InDelta(t, 1224514.4, xr.End, 1.0)
	assert.Less(t, yr.Begin, yr.End)
	assert.Greater(t, yr.Begin, 6e6)
}

// A point query survives reprojection: the collapsed box is widened by the
// tolerance and translating it back recovers the original point within
// tolerance.
func TestTranslateQueryDegeneratePoint(t *testing.T) {
	lon, lat := 14.5, 48.25
	sel, err := TranslateQuery(Query{
		CRS: longlatProj4,
		Dims: map[string]DimQuery{
			"lon": {Point: lon},
			"lat": {Point: lat},
		},
	}, webMercProj4, map[string]Coordinate{"x": {}, "y": {}})
	require.NoError(t, err)

	xr := sel["x"].Range
	yr := sel["y"].Range
	require.True(t, boundedRange(xr))
	require.True(t, boundedRange(yr))
	assert.GreaterOrEqual(t, xr.End-xr.Begin, 2*DegenerateBoxTolerance)
	assert.GreaterOrEqual(t, yr.End-yr.Begin, 2*DegenerateBoxTolerance)

	// Round-trip the box centre back to lon/lat.
	back, err := TranslateQuery(Query{
		CRS: webMercProj4,
		Dims: map[string]DimQuery{
			"x": {Point: (xr.Begin + xr.End) / 2},
			"y": {Point: (yr.Begin + yr.End) / 2},
		},
	}, longlatProj4, map[string]Coordinate{"longitude": {}, "latitude": {}})
	require.NoError(t, err)
	assert.InDelta(t, lon, (back["longitude"].Range.Begin+back["longitude"].Range.End)/2, 1e-4)
	assert.InDelta(t, lat, (back["latitude"].Range.Begin+back["latitude"].Range.End)/2, 1e-4)
}

func TestTranslateQuerySameCRSNoReprojection(t *testing.T) {
	sel, err := TranslateQuery(Query{
		CRS: webMercProj4,
		Dims: map[string]DimQuery{
			"x": {Begin: 1000.0, End: 2000.0},
		},
	}, webMercProj4, map[string]Coordinate{"x": {}})
	require.NoError(t, err)
	assert.Equal(t, Range{Begin: 1000, End: 2000}, sel["x"].Range)
}

func TestTranslateQueryBadCRS(t *testing.T) {
	_, err := TranslateQuery(Query{
		CRS: "+proj=nonsense",
		Dims: map[string]DimQuery{
			"x": {Begin: 0.0, End: 1.0},
			"y": {Begin: 0.0, End: 1.0},
		},
	}, longlatProj4, map[string]Coordinate{"x": {}, "y": {}})
	assert.True(t, errors.Is(err, ErrProjection))
}

func TestExpandDegenerate(t *testing.T) {
	r := expandDegenerate(Range{Begin: 5, End: 5})
	assert.Equal(t, 5-DegenerateBoxTolerance, r.Begin)
	assert.Equal(t, 5+DegenerateBoxTolerance, r.End)

	r = expandDegenerate(Range{Begin: 1, End: 2})
	assert.Equal(t, Range{Begin: 1, End: 2}, r)
}
