package ncdf

import (
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/pkg/errors"

	"github.com/gridspatial/go-datacube/internal/dtype"
)

// CoordInfo summarizes one coordinate variable.
type CoordInfo struct {
	Kind   dtype.Kind
	Begin  float64
	End    float64
	Length int
	Units  string
}

// VarInfo summarizes one data variable.
type VarInfo struct {
	Kind       dtype.Kind
	Dimensions []string
	Units      string
	Nodata     float64
	HasNodata  bool
}

// Info is the metadata of one NetCDF file needed to build a storage unit.
type Info struct {
	Coordinates map[string]CoordInfo
	Variables   map[string]VarInfo
	CRS         string
}

// crsAttrs are the global attributes checked, in order, for a projection
// definition.
var crsAttrs = []string{"crs", "proj4", "spatial_ref"}

// Describe opens a NetCDF file just long enough to extract the coordinate
// and variable metadata. Coordinate variables are recognized by the CF
// convention of a one-dimensional variable named after its own dimension.
func Describe(path string) (*Info, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening netcdf %s", path)
	}
	defer nc.Close()

	info := &Info{
		Coordinates: make(map[string]CoordInfo),
		Variables:   make(map[string]VarInfo),
	}
	for _, attr := range crsAttrs {
		if v, ok := nc.Attributes().Get(attr); ok {
			if s, ok := v.(string); ok && s != "" {
				info.CRS = s
				break
			}
		}
	}

	for _, name := range nc.ListVariables() {
		vg, err := nc.GetVarGetter(name)
		if err != nil {
			return nil, errors.Wrapf(err, "variable %s of %s", name, path)
		}
		kind, err := dtype.Parse(vg.GoType())
		if err != nil {
			return nil, errors.Wrapf(err, "variable %s of %s", name, path)
		}
		dims := vg.Dimensions()
		units := stringAttr(vg.Attributes(), "units")

		if len(dims) == 1 && dims[0] == name {
			ci, err := describeCoord(vg, kind, units)
			if err != nil {
				return nil, errors.Wrapf(err, "coordinate %s of %s", name, path)
			}
			info.Coordinates[name] = ci
			continue
		}

		vi := VarInfo{Kind: kind, Dimensions: dims, Units: units}
		for _, attr := range []string{"_FillValue", "missing_value"} {
			if raw, ok := vg.Attributes().Get(attr); ok {
				if nd, err := scalarAttr(raw); err == nil {
					vi.Nodata, vi.HasNodata = nd, true
					break
				}
			}
		}
		info.Variables[name] = vi
	}
	return info, nil
}

func describeCoord(vg api.VarGetter, kind dtype.Kind, units string) (CoordInfo, error) {
	v, err := vg.Values()
	if err != nil {
		return CoordInfo{}, err
	}
	var labels []float64
	if err := flatten(reflect.ValueOf(v), &labels); err != nil {
		return CoordInfo{}, err
	}
	if len(labels) == 0 {
		return CoordInfo{}, errors.New("empty coordinate variable")
	}
	return CoordInfo{
		Kind:   kind,
		Begin:  labels[0],
		End:    labels[len(labels)-1],
		Length: len(labels),
		Units:  units,
	}, nil
}

func stringAttr(am api.AttributeMap, key string) string {
	if v, ok := am.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// scalarAttr widens an attribute that may be a scalar or a length-1 slice.
func scalarAttr(raw interface{}) (float64, error) {
	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if rv.Len() != 1 {
			return 0, errors.Errorf("attribute has %d elements, expected 1", rv.Len())
		}
		rv = rv.Index(0)
	}
	return widen(rv)
}
