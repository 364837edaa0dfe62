package datacube

import "context"

// Descriptor is the shape a metadata catalog returns for one storage unit.
// The engine does not care how the catalog is queried or persisted, only
// that matching units arrive in this form.
type Descriptor struct {
	Coordinates map[string]Coordinate
	Variables   map[string]Variable
	CRS         string
	Locator     string
}

// Catalog is the consumed interface to an external metadata store.
type Catalog interface {
	// Find returns descriptors of the storage units matching the query's
	// dimension ranges and field filters.
	Find(ctx context.Context, q Query) ([]Descriptor, error)
}
