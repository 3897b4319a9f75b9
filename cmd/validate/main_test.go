package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/precip-render-service/internal/adapter/netcdf"
	"github.com/couchcryptid/precip-render-service/internal/domain"
)

func writeGrid(t *testing.T, dir, name string, g domain.Grid) {
	t.Helper()
	data, err := netcdf.Encode(g, netcdf.DefaultVariable)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func writeDataset(t *testing.T, dir string, shapes map[string][2]int) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"),
		[]byte(`{"real_min":1,"real_max":3,"hour_min":"2024-04-26T15","hour_max":"2024-04-26T16"}`), 0o644))
	for name, wh := range shapes {
		values := make([]float64, wh[0]*wh[1])
		for i := range values {
			values[i] = float64(i)
		}
		g, err := domain.NewGrid(wh[0], wh[1], values)
		require.NoError(t, err)
		writeGrid(t, dir, name, g)
	}
}

func TestRun_ValidDataset(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, map[string][2]int{
		"real-1-t-2024-04-26T15.nc": {3, 2},
		"real-2-t-2024-04-26T15.nc": {3, 2},
	})
	var out bytes.Buffer

	code := run(&out, dir, netcdf.DefaultVariable)

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "All validations passed.")
	assert.Contains(t, out.String(), "Grid files decoded: 2")
}

func TestRun_MissingGrid(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, map[string][2]int{"real-1-t-2024-04-26T15.nc": {3, 2}})
	var out bytes.Buffer

	code := run(&out, dir, netcdf.DefaultVariable)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "real-2-t-2024-04-26T15.nc")
}

func TestRun_ShapeMismatch(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, map[string][2]int{
		"real-1-t-2024-04-26T15.nc": {3, 2},
		"real-2-t-2024-04-26T15.nc": {2, 2},
	})
	var out bytes.Buffer

	code := run(&out, dir, netcdf.DefaultVariable)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "dimension mismatch")
}

func TestRun_MissingMetadata(t *testing.T) {
	var out bytes.Buffer

	code := run(&out, t.TempDir(), netcdf.DefaultVariable)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "Phase 1: Metadata")
}

func TestRun_DryCellsPass(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, nil)
	// Dry everywhere in one member; MAX leaves those cells unset.
	writeGrid(t, dir, "real-1-t-2024-04-26T15.nc", domain.Grid{Width: 2, Height: 1, Values: []float64{0, 0}})
	writeGrid(t, dir, "real-2-t-2024-04-26T15.nc", domain.Grid{Width: 2, Height: 1, Values: []float64{0, 2.5}})
	var out bytes.Buffer

	code := run(&out, dir, netcdf.DefaultVariable)

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "Phase 4: Value Ranges")
}

func TestRun_NegativeValueFails(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, nil)
	writeGrid(t, dir, "real-1-t-2024-04-26T15.nc", domain.Grid{Width: 2, Height: 1, Values: []float64{1, -3}})
	writeGrid(t, dir, "real-2-t-2024-04-26T15.nc", domain.Grid{Width: 2, Height: 1, Values: []float64{1, 1}})
	var out bytes.Buffer

	code := run(&out, dir, netcdf.DefaultVariable)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "cell 1: value out of range")
}
