// Package datacube locates, stitches and lazily assembles multi-dimensional
// Earth-observation raster data spread across heterogeneous storage units.
package datacube

import "github.com/pkg/errors"

// Sentinel errors. Call sites wrap these with context; callers match with
// errors.Is.
var (
	// ErrMissingDimension is returned when a requested dimension is not
	// present in a storage unit's coordinates.
	ErrMissingDimension = errors.New("dimension not found in storage unit")

	// ErrUnknownVariable is returned when a requested variable is not
	// present in a storage unit.
	ErrUnknownVariable = errors.New("variable not found in storage unit")

	// ErrUnsupportedIndex is returned when an index is neither a Range nor
	// a step-1 Slice.
	ErrUnsupportedIndex = errors.New("unsupported index")

	// ErrInconsistentUnits is returned at Stack construction when member
	// units disagree on non-stack coordinates or variable schemas, or are
	// unsorted or overlapping along the stack dimension.
	ErrInconsistentUnits = errors.New("inconsistent storage units")

	// ErrStratification marks an internal invariant violation in the
	// stratifier: a coordinate value that cannot be assigned to any run.
	ErrStratification = errors.New("stratification invariant violated")

	// ErrProjection is returned when a query bounding box cannot be
	// reprojected into the storage coordinate system.
	ErrProjection = errors.New("projection failed")
)
