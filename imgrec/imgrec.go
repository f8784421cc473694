// Package imgrec contains a product recorder used to save reduced frames to disk.
package imgrec

import (
	"encoding/json"
	"fmt"
	"go/types"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/astrogo/fitsio"

	"github.com/nasa-jpl/cticalib/cifits"
	"github.com/nasa-jpl/cticalib/grid"
	"github.com/nasa-jpl/cticalib/server"
)

// Recorder records frame sequences with incrementing filenames in yyyy-mm-dd subfolders
type Recorder struct {
	mu sync.Mutex

	// counter is the internally incrementing counter
	counter int

	// Root is the root path
	Root string

	// Prefix is the prefix for the filenames
	Prefix string

	// Enabled is a flag unused by this struct that allows consumers to disable its use in their code
	Enabled bool

	// now is swapped in tests
	now func() time.Time
}

// New returns a recorder writing under root with the given filename prefix
func New(root, prefix string) *Recorder {
	return &Recorder{Root: root, Prefix: prefix, Enabled: true, now: time.Now}
}

// folder is Root/yyyy-mm-dd for the current day
func (r *Recorder) folder() string {
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	y, m, d := now().Date()
	return filepath.Join(r.Root, fmt.Sprintf("%04d-%02d-%02d", y, m, d))
}

// mkDir makes the folder and returns it
func (r *Recorder) mkDir() (string, error) {
	fldr := r.folder()
	err := os.MkdirAll(fldr, 0777)
	return fldr, err
}

// incr updates the filename counter by scanning the folder.  The caller holds mu
func (r *Recorder) incr() error {
	dn, err := r.mkDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dn)
	if err != nil {
		return err
	}
	count := -1
	for _, e := range entries {
		// skip directories, non-fits, and wrong prefix
		if e.IsDir() {
			continue
		}
		fn := e.Name()
		if !strings.HasSuffix(fn, ".fits") || !strings.HasPrefix(fn, r.Prefix) {
			continue
		}
		bit := strings.TrimSuffix(strings.TrimPrefix(fn, r.Prefix), ".fits")
		n, err := strconv.Atoi(bit)
		if err != nil {
			continue
		}
		count = max(count, n)
	}
	r.counter = count + 1
	return nil
}

// Incr updates the filename counter; it scans the folder to do so.  If there
// is an error, the counter is not changed
func (r *Recorder) Incr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.incr()
}

// Record writes a to the next file in the sequence and returns its path
func (r *Recorder) Record(a *grid.Array2D, metadata []fitsio.Card) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.incr(); err != nil {
		return "", err
	}
	fn := filepath.Join(r.folder(), fmt.Sprintf("%s%06d.fits", r.Prefix, r.counter))
	if err := cifits.WriteFile(fn, a, metadata); err != nil {
		return "", err
	}
	return fn, nil
}

// IsEnabled reports the Enabled flag
func (r *Recorder) IsEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Enabled
}

// HTTPWrapper is an HTTP wrapper around a recorder that allows the folder and prefix to be changed on the fly
//
// it offers an Inject method allowing its routes to be added to another HTTPer
type HTTPWrapper struct {
	*Recorder
}

// NewHTTPWrapper returns an HTTP wrapper around a recorder
func NewHTTPWrapper(r *Recorder) HTTPWrapper {
	return HTTPWrapper{r}
}

// SetRoot updates the root folder of the recorder
func (h HTTPWrapper) SetRoot(w http.ResponseWriter, r *http.Request) {
	str := server.StrT{}
	err := json.NewDecoder(r.Body).Decode(&str)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec := h.Recorder
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.Root = str.Str
	if _, err = rec.mkDir(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetRoot gets the recorder's root folder and sends it back as JSON
func (h HTTPWrapper) GetRoot(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	hp := server.HumanPayload{T: types.String, String: h.Recorder.Root}
	h.mu.Unlock()
	hp.EncodeAndRespond(w, r)
}

// SetPrefix updates the filename prefix of the recorder
func (h HTTPWrapper) SetPrefix(w http.ResponseWriter, r *http.Request) {
	str := server.StrT{}
	err := json.NewDecoder(r.Body).Decode(&str)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	h.Recorder.Prefix = str.Str
	h.Recorder.counter = 0
	h.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

// GetPrefix gets the recorder's prefix and sends it back as JSON
func (h HTTPWrapper) GetPrefix(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	hp := server.HumanPayload{T: types.String, String: h.Recorder.Prefix}
	h.mu.Unlock()
	hp.EncodeAndRespond(w, r)
}

// GetEnabled returns the Recorder's Enabled field
func (h HTTPWrapper) GetEnabled(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	hp := server.HumanPayload{T: types.Bool, Bool: h.Recorder.Enabled}
	h.mu.Unlock()
	hp.EncodeAndRespond(w, r)
}

// SetEnabled sets the recorder's Enabled field
func (h HTTPWrapper) SetEnabled(w http.ResponseWriter, r *http.Request) {
	bT := server.BoolT{}
	err := json.NewDecoder(r.Body).Decode(&bT)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	h.Recorder.Enabled = bT.Bool
	h.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

// Inject adds GET and POST routes for /autowrite/root, /autowrite/prefix and
// /autowrite/enabled to the HTTPer which manipulate this wrapper's recorder
func (h HTTPWrapper) Inject(other server.HTTPer) {
	rt := other.RT()
	rt[server.MethodPath{Method: http.MethodPost, Path: "/autowrite/root"}] = h.SetRoot
	rt[server.MethodPath{Method: http.MethodGet, Path: "/autowrite/root"}] = h.GetRoot
	rt[server.MethodPath{Method: http.MethodPost, Path: "/autowrite/prefix"}] = h.SetPrefix
	rt[server.MethodPath{Method: http.MethodGet, Path: "/autowrite/prefix"}] = h.GetPrefix
	rt[server.MethodPath{Method: http.MethodPost, Path: "/autowrite/enabled"}] = h.SetEnabled
	rt[server.MethodPath{Method: http.MethodGet, Path: "/autowrite/enabled"}] = h.GetEnabled
}
