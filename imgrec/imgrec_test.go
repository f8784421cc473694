package imgrec

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/cticalib/cifits"
	"github.com/nasa-jpl/cticalib/grid"
	"github.com/nasa-jpl/cticalib/server"
)

type routes struct{ rt server.RouteTable }

func (r routes) RT() server.RouteTable { return r.rt }

func fixedRecorder(t *testing.T) *Recorder {
	t.Helper()
	r := New(t.TempDir(), "ci")
	r.now = func() time.Time { return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC) }
	return r
}

func TestRecordIncrements(t *testing.T) {
	r := fixedRecorder(t)
	a, err := grid.FromRows([][]float64{{1, 2}, {3, 4}}, grid.PixelScales{0.1, 0.1})
	require.NoError(t, err)

	first, err := r.Record(a, nil)
	require.NoError(t, err)
	second, err := r.Record(a, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(r.Root, "2024-03-09", "ci000000.fits"), first)
	assert.Equal(t, filepath.Join(r.Root, "2024-03-09", "ci000001.fits"), second)

	// stray files do not disturb the sequence
	require.NoError(t, os.WriteFile(filepath.Join(r.Root, "2024-03-09", "ciabc.fits"), nil, 0666))
	require.NoError(t, os.WriteFile(filepath.Join(r.Root, "2024-03-09", "other000009.fits"), nil, 0666))
	third, err := r.Record(a, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(third, "ci000002.fits"), third)

	got, err := cifits.FileLoader{}.Load(second)
	require.NoError(t, err)
	assert.Equal(t, a.Values(), got.Values())
}

func TestHTTPWrapper(t *testing.T) {
	r := fixedRecorder(t)
	rt := routes{rt: server.RouteTable{}}
	NewHTTPWrapper(r).Inject(rt)
	assert.Len(t, rt.rt, 6)

	newRoot := filepath.Join(t.TempDir(), "products")
	req := httptest.NewRequest(http.MethodPost, "/autowrite/root", strings.NewReader(`{"str":"`+newRoot+`"}`))
	rec := httptest.NewRecorder()
	rt.rt[server.MethodPath{Method: http.MethodPost, Path: "/autowrite/root"}](rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, newRoot, r.Root)
	assert.DirExists(t, filepath.Join(newRoot, "2024-03-09"))

	req = httptest.NewRequest(http.MethodPost, "/autowrite/enabled", strings.NewReader(`{"bool":false}`))
	rec = httptest.NewRecorder()
	rt.rt[server.MethodPath{Method: http.MethodPost, Path: "/autowrite/enabled"}](rec, req)
	assert.False(t, r.Enabled)

	rec = httptest.NewRecorder()
	rt.rt[server.MethodPath{Method: http.MethodGet, Path: "/autowrite/prefix"}](rec, httptest.NewRequest(http.MethodGet, "/autowrite/prefix", nil))
	var s server.StrT
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&s))
	assert.Equal(t, "ci", s.Str)

	req = httptest.NewRequest(http.MethodPost, "/autowrite/prefix", strings.NewReader(`not json`))
	rec = httptest.NewRecorder()
	rt.rt[server.MethodPath{Method: http.MethodPost, Path: "/autowrite/prefix"}](rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
