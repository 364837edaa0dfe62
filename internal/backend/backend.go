// Package backend defines the fetch boundary between the datacube core and
// format-specific readers. The core never decodes bytes itself; it asks a
// Fetcher for coordinate label arrays and rectangular sample blocks.
package backend

// Fetcher is the capability a format reader must provide for one open
// storage location. Implementations are not required to be safe for
// concurrent use; the handle Cache serializes access.
type Fetcher interface {
	// ReadCoordinate returns the full label array of one dimension,
	// widened to float64.
	ReadCoordinate(dim string) ([]float64, error)

	// ReadBlock reads the rectangular block of a variable that starts at
	// start and extends count elements along each dimension, in row-major
	// order, widened to float64.
	ReadBlock(variable string, start, count []int) ([]float64, error)

	// Close releases the underlying handle.
	Close() error
}

// Opener creates a Fetcher for a backend-specific locator (usually a file
// path).
type Opener func(locator string) (Fetcher, error)
