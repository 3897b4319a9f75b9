// Package datasource retrieves ensemble objects (metadata and NetCDF grids)
// from a static data source and decodes them into domain values.
package datasource

import (
	"context"
	"fmt"

	"github.com/couchcryptid/precip-render-service/internal/domain"
)

// MetadataObject is the name of the dataset descriptor.
const MetadataObject = "metadata.json"

// Source returns the raw bytes of a named object. Implementations report
// failures as *domain.FetchError; a missing object carries Status 404.
type Source interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// ObjectName returns the object holding the grid for key.
func ObjectName(key domain.GridKey) string {
	return fmt.Sprintf("real-%d-t-%s.nc", key.Realization, key.Time)
}
