package locker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/cticalib/server"
)

type table struct{ rt server.RouteTable }

func (t table) RT() server.RouteTable { return t.rt }

func ok(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func setup() (chi.Router, *Locker) {
	l := New()
	tb := table{rt: server.RouteTable{
		{Method: http.MethodGet, Path: "/data"}:  ok,
		{Method: http.MethodPost, Path: "/data"}: ok,
	}}
	Inject(tb, l)
	r := chi.NewRouter()
	r.Use(l.Check)
	tb.rt.Bind(r)
	return r, l
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestCheck(t *testing.T) {
	r, l := setup()
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/data", "").Code)

	l.Lock()
	assert.Equal(t, http.StatusLocked, do(r, http.MethodPost, "/data", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/data", "").Code)

	l.Unlock()
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/data", "").Code)
}

func TestHTTPRoundTrip(t *testing.T) {
	r, l := setup()
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/lock", `{"bool":true}`).Code)
	assert.True(t, l.Locked())

	rec := do(r, http.MethodGet, "/lock", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var b server.BoolT
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&b))
	assert.True(t, b.Bool)

	// the lock route itself is never protected
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/lock", `{"bool":false}`).Code)
	assert.False(t, l.Locked())

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/lock", "nope").Code)
}
