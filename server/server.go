// Package server contains misc server utilities.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"log"
	"net/http"
	"sort"

	"github.com/go-chi/chi"
)

// MethodPath is a struct containing an HTTP method and a URL path
type MethodPath struct {
	Method, Path string
}

// RouteTable maps method+path pairs to handlers
type RouteTable map[MethodPath]http.HandlerFunc

// Endpoints lists the routes in the table as "METHOD path", sorted by path
func (rt RouteTable) Endpoints() []string {
	keys := make([]MethodPath, 0, len(rt))
	for k := range rt {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Path == keys[j].Path {
			return keys[i].Method < keys[j].Method
		}
		return keys[i].Path < keys[j].Path
	})
	routes := make([]string, len(keys))
	for i, k := range keys {
		routes[i] = k.Method + " " + k.Path
	}
	return routes
}

// Bind binds every route in the table to r
func (rt RouteTable) Bind(r chi.Router) {
	for mp, h := range rt {
		r.MethodFunc(mp.Method, mp.Path, h)
	}
}

// HTTPer is something that exposes a route table
type HTTPer interface {
	RT() RouteTable
}

// ListEndpoints returns a handler that replies with the endpoints of rt as JSON
func ListEndpoints(rt RouteTable) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, rt.Endpoints())
	}
}

// WriteJSON encodes v as the body of an HTTP 200 response
func WriteJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fstr := fmt.Sprintf("error encoding data to json %q", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
	}
}

// HumanPayload is a struct containing the basic types server endpoints may
// need to return.  T selects which field is encoded.
type HumanPayload struct {
	T types.BasicKind

	Bool bool

	Float float64

	Int int

	String string
}

// EncodeAndRespond encodes the payload as {"bool": ...}, {"f64": ...},
// {"int": ...} or {"str": ...} and writes it to w
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	var v interface{}
	switch hp.T {
	case types.Bool:
		v = BoolT{Bool: hp.Bool}
	case types.Float64:
		v = FloatT{F64: hp.Float}
	case types.Int:
		v = IntT{Int: hp.Int}
	case types.String:
		v = StrT{Str: hp.String}
	default:
		http.Error(w, fmt.Sprintf("payload kind %v not supported", hp.T), http.StatusInternalServerError)
		return
	}
	WriteJSON(w, v)
}

// BoolT is a struct with a single Bool field
type BoolT struct {
	Bool bool `json:"bool"`
}

// FloatT is a struct with a single F64 field
type FloatT struct {
	F64 float64 `json:"f64"`
}

// IntT is a struct with a single Int field
type IntT struct {
	Int int `json:"int"`
}

// StrT is a struct with a single Str field
type StrT struct {
	Str string `json:"str"`
}
