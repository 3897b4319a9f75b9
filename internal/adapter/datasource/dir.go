package datasource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/couchcryptid/precip-render-service/internal/domain"
)

// DirSource reads objects from a local directory.
type DirSource struct {
	root string
}

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{root: dir}
}

// Fetch implements Source.
func (s *DirSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.FetchError{Object: name, Err: err}
	}
	if !filepath.IsLocal(name) {
		return nil, &domain.FetchError{Object: name, Status: http.StatusBadRequest, Err: fmt.Errorf("object name escapes data directory")}
	}

	data, err := os.ReadFile(filepath.Join(s.root, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &domain.FetchError{Object: name, Status: http.StatusNotFound, Err: err}
	}
	if err != nil {
		return nil, &domain.FetchError{Object: name, Err: err}
	}
	return data, nil
}
