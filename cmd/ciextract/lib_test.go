package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/cticalib/cifits"
	"github.com/nasa-jpl/cticalib/dataset"
	"github.com/nasa-jpl/cticalib/grid"
	"github.com/nasa-jpl/cticalib/imgrec"
	"github.com/nasa-jpl/cticalib/region"
	"github.com/nasa-jpl/cticalib/roe"
)

type memLoader map[string]*grid.Array2D

func (m memLoader) Load(path string) (*grid.Array2D, error) {
	a, ok := m[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return a, nil
}

func simulated(t *testing.T, c Config) (*dataset.ImagingCI, *grid.Array2D) {
	t.Helper()
	a, err := Simulate(c)
	require.NoError(t, err)
	d, err := LoadDataset(c, memLoader{c.Files.Data: a})
	require.NoError(t, err)
	return d, a
}

func TestDefaultConfigLayout(t *testing.T) {
	c := DefaultConfig()
	l, err := c.RawLayout()
	require.NoError(t, err)
	assert.Len(t, l.Regions, 2)
	require.NotNil(t, l.SerialOverscan)
	assert.Equal(t, [4]int{0, 100, 55, 60}, l.SerialOverscan.Quad())

	c.Layout.SerialPrescan = []int{0, 1, 2}
	_, err = c.RawLayout()
	assert.True(t, errors.Is(err, region.ErrInvalidRegion))

	c = DefaultConfig()
	c.Layout.SerialPrescan = nil
	l, err = c.RawLayout()
	require.NoError(t, err)
	assert.Nil(t, l.SerialPrescan)
}

func TestReadoutCorner(t *testing.T) {
	c := DefaultConfig()
	corner, err := c.ReadoutCorner()
	require.NoError(t, err)
	assert.Equal(t, roe.TopLeft, corner)

	c.Quadrant = "E2"
	c.Corners = map[string]string{"E1": "top-left", "E2": "(1,1)"}
	corner, err = c.ReadoutCorner()
	require.NoError(t, err)
	assert.Equal(t, roe.BottomRight, corner)

	c.Quadrant = "F9"
	_, err = c.ReadoutCorner()
	assert.True(t, errors.Is(err, roe.ErrUnsupportedOrientation))
}

func TestMaskSettings(t *testing.T) {
	c := DefaultConfig()
	c.Mask.ParallelFPR = region.Pixels(0, 2)
	s := c.MaskSettings()
	require.NotNil(t, s.ParallelFPR)
	assert.Equal(t, region.Pixels(0, 2), *s.ParallelFPR)
	assert.Nil(t, s.SerialEPER)

	d, _ := simulated(t, c)
	assert.True(t, d.Data.Masked(10, 20))
	assert.False(t, d.Data.Masked(12, 20))
}

func TestReport(t *testing.T) {
	c := DefaultConfig()
	d, _ := simulated(t, c)
	var buf bytes.Buffer
	require.NoError(t, Report(&buf, c, d))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "parallel-eper [0, 10)"), out)
	assert.Contains(t, out, "serial-eper [0, 5)")
	assert.Contains(t, out, "mean per region")

	c.Windows = map[string]region.Window{"diagonal": region.Pixels(0, 1)}
	assert.Error(t, Report(&buf, c, d))
	c.Windows = map[string]region.Window{"parallel-eper": region.Pixels(0, 1)}
	c.Statistic = "mode"
	assert.Error(t, Report(&buf, c, d))
}

func TestSimulateIsReproducible(t *testing.T) {
	c := DefaultConfig()
	a, err := Simulate(c)
	require.NoError(t, err)
	b, err := Simulate(c)
	require.NoError(t, err)
	assert.Equal(t, a.Values(), b.Values())

	// injected regions sit well above the residual charge and noise between them
	assert.Greater(t, a.At(20, 30), 500.0)
	assert.Less(t, a.At(50, 30), 100.0)
}

func TestPlot(t *testing.T) {
	c := DefaultConfig()
	d, _ := simulated(t, c)
	var buf bytes.Buffer
	require.NoError(t, Plot(&buf, c, d))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestCalibrate(t *testing.T) {
	c := DefaultConfig()
	d, _ := simulated(t, c)
	rec := imgrec.New(t.TempDir(), "cal")
	paths, err := Calibrate(c, d, rec)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	par, err := cifits.FileLoader{}.Load(paths[0])
	require.NoError(t, err)
	rows, cols := par.Dims()
	assert.Equal(t, 100, rows)
	assert.Equal(t, 10, cols)

	ser, err := cifits.FileLoader{}.Load(paths[1])
	require.NoError(t, err)
	rows, cols = ser.Dims()
	assert.Equal(t, 10, rows)
	assert.Equal(t, 60, cols)
}

func TestBuildMux(t *testing.T) {
	c := DefaultConfig()
	d, _ := simulated(t, c)
	mux := BuildMux(d, imgrec.New(t.TempDir(), "ci"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/endpoints", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var eps []string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&eps))
	assert.Contains(t, eps, "GET /binned")
	assert.Contains(t, eps, "POST /autowrite/root")
	assert.Contains(t, eps, "POST /lock")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/lock", strings.NewReader(`{"bool":true}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/record", nil))
	assert.Equal(t, http.StatusLocked, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/layout", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "reads pass while locked")
}

func TestConfigFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ciextract.yml")
	body := `corner: bottom-left
statistic: median
layout:
  shape: [40, 20]
  regions:
    - [5, 10, 2, 18]
    - [25, 30, 2, 18]
  parallelOverscan: []
  serialPrescan: [0, 40, 0, 2]
  serialOverscan: [0, 40, 18, 20]
calibration:
  columns: [2, 6]
  rows: [1, 3]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0666))
	kk := koanf.New(".")
	require.NoError(t, kk.Load(structs.Provider(DefaultConfig(), "koanf"), nil))
	require.NoError(t, kk.Load(file.Provider(path), yaml.Parser()))
	c := Config{}
	require.NoError(t, kk.Unmarshal("", &c))

	assert.Equal(t, "median", c.Statistic)
	assert.Equal(t, ":8000", c.Addr, "defaults survive the overlay")
	assert.Equal(t, [2]int{40, 20}, c.Layout.Shape)
	assert.Equal(t, [][4]int{{5, 10, 2, 18}, {25, 30, 2, 18}}, c.Layout.Regions)
	assert.Equal(t, [2]int{1, 3}, c.Calibration.Rows)

	corner, err := c.ReadoutCorner()
	require.NoError(t, err)
	assert.Equal(t, roe.BottomLeft, corner)
	l, err := c.RawLayout()
	require.NoError(t, err)
	assert.Nil(t, l.ParallelOverscan)
}
