// Package locker provides an HTTP middleware which allows routes to be locked, returning 423 (locked)
package locker

import (
	"encoding/json"
	"go/types"
	"net/http"
	"strings"
	"sync"

	"github.com/nasa-jpl/cticalib/server"
)

// Inject adds a lock route to a server.HTTPer which is used to manipulate the locker
func Inject(other server.HTTPer, l *Locker) {
	rt := other.RT()
	rt[server.MethodPath{Method: http.MethodGet, Path: "/lock"}] = l.HTTPGet
	rt[server.MethodPath{Method: http.MethodPost, Path: "/lock"}] = l.HTTPSet
}

// Locker is a type which behaves like a sync.Mutex without the blocking.
// While locked, requests using one of the Protect methods are bounced
// unless their path contains an entry of DoNotProtect
type Locker struct {
	mu       sync.RWMutex
	isLocked bool

	// Protect is the set of HTTP methods the lock applies to
	Protect []string

	// DoNotProtect is a list of paths not to apply the lock to
	DoNotProtect []string
}

// New returns a new Locker protecting mutating methods, with DoNotProtect
// prepopulated with "lock"
func New() *Locker {
	return &Locker{
		Protect:      []string{http.MethodPost, http.MethodPut, http.MethodDelete},
		DoNotProtect: []string{"lock"},
	}
}

// Lock the locker
func (l *Locker) Lock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.isLocked = true
}

// Unlock the locker
func (l *Locker) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.isLocked = false
}

// Locked returns true if the locker is locked
func (l *Locker) Locked() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.isLocked
}

func (l *Locker) protected(r *http.Request) bool {
	method := false
	for _, m := range l.Protect {
		if r.Method == m {
			method = true
			break
		}
	}
	if !method {
		return false
	}
	for _, str := range l.DoNotProtect {
		if strings.Contains(r.URL.Path, str) {
			return false
		}
	}
	return true
}

// Check is an HTTP middleware that returns http.StatusLocked if Locked() is true, otherwise passes down the line
func (l *Locker) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.Locked() && l.protected(r) {
			w.WriteHeader(http.StatusLocked)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HTTPSet calls Lock or Unlock based on json:bool on the request body
func (l *Locker) HTTPSet(w http.ResponseWriter, r *http.Request) {
	b := server.BoolT{}
	err := json.NewDecoder(r.Body).Decode(&b)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if b.Bool {
		l.Lock()
	} else {
		l.Unlock()
	}
	w.WriteHeader(http.StatusOK)
}

// HTTPGet returns Locked() over HTTP as JSON
func (l *Locker) HTTPGet(w http.ResponseWriter, r *http.Request) {
	hp := server.HumanPayload{T: types.Bool, Bool: l.Locked()}
	hp.EncodeAndRespond(w, r)
}
