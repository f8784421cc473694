package dataset

import (
	"errors"
	"fmt"
	"go/types"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/astrogo/fitsio"

	"github.com/nasa-jpl/cticalib/extract"
	"github.com/nasa-jpl/cticalib/grid"
	"github.com/nasa-jpl/cticalib/imgrec"
	"github.com/nasa-jpl/cticalib/layout"
	"github.com/nasa-jpl/cticalib/mathx"
	"github.com/nasa-jpl/cticalib/profileplot"
	"github.com/nasa-jpl/cticalib/region"
	"github.com/nasa-jpl/cticalib/server"
)

// ErrRecorderDisabled is generated when a product is posted with no enabled recorder
var ErrRecorderDisabled = errors.New("product recorder is not enabled")

// HTTPWrapper exposes the extractors of a dataset over HTTP.  The dataset is
// only read, so requests may be served concurrently
type HTTPWrapper struct {
	// Dataset is the frame being served
	Dataset *ImagingCI

	// Recorder receives products posted to /record, may be nil
	Recorder *imgrec.Recorder

	set *extract.Set2D

	// RouteTable maps method+path pairs to handlers
	RouteTable server.RouteTable
}

// NewHTTPWrapper returns a new wrapper with the route table populated
func NewHTTPWrapper(d *ImagingCI, rec *imgrec.Recorder) HTTPWrapper {
	w := HTTPWrapper{Dataset: d, Recorder: rec, set: d.Extractors()}
	w.RouteTable = server.RouteTable{
		{Method: http.MethodGet, Path: "/layout"}:     w.GetLayout,
		{Method: http.MethodGet, Path: "/regions"}:    w.GetRegions,
		{Method: http.MethodGet, Path: "/stacked"}:    w.GetStacked,
		{Method: http.MethodGet, Path: "/binned"}:     w.GetBinned,
		{Method: http.MethodGet, Path: "/binned.png"}: w.GetBinnedPNG,
		{Method: http.MethodGet, Path: "/statistics"}: w.GetStatistics,
		{Method: http.MethodPost, Path: "/record"}:    w.PostRecord,
	}
	if rec != nil {
		imgrec.NewHTTPWrapper(rec).Inject(w)
	}
	return w
}

// RT satisfies server.HTTPer
func (h HTTPWrapper) RT() server.RouteTable {
	return h.RouteTable
}

// LayoutJSON is the wire form of a layout; regions are (y0, y1, x0, x1)
type LayoutJSON struct {
	Shape            [2]int   `json:"shape"`
	Regions          [][4]int `json:"regions"`
	ParallelOverscan *[4]int  `json:"parallelOverscan,omitempty"`
	SerialPrescan    *[4]int  `json:"serialPrescan,omitempty"`
	SerialOverscan   *[4]int  `json:"serialOverscan,omitempty"`
}

func optionalQuad(r *region.Region2D) *[4]int {
	if r == nil {
		return nil
	}
	q := r.Quad()
	return &q
}

func quads(rs []region.Region2D) [][4]int {
	out := make([][4]int, len(rs))
	for i, r := range rs {
		out[i] = r.Quad()
	}
	return out
}

// NewLayoutJSON converts l to its wire form
func NewLayoutJSON(l *layout.Layout2D) LayoutJSON {
	return LayoutJSON{
		Shape:            l.Shape,
		Regions:          quads(l.Regions),
		ParallelOverscan: optionalQuad(l.ParallelOverscan),
		SerialPrescan:    optionalQuad(l.SerialPrescan),
		SerialOverscan:   optionalQuad(l.SerialOverscan),
	}
}

// ParseWindow reads the start, end and from-end query parameters.  from-end
// takes precedence over start and end
func ParseWindow(q url.Values) (region.Window, error) {
	if s := q.Get("from-end"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return region.Window{}, fmt.Errorf("from-end %q: %w", s, err)
		}
		if n <= 0 {
			return region.Window{}, fmt.Errorf("%w: from-end must be positive, got %d", region.ErrInvalidRegion, n)
		}
		return region.PixelsFromEnd(n), nil
	}
	start, err := strconv.Atoi(q.Get("start"))
	if err != nil {
		return region.Window{}, fmt.Errorf("start %q: %w", q.Get("start"), err)
	}
	end, err := strconv.Atoi(q.Get("end"))
	if err != nil {
		return region.Window{}, fmt.Errorf("end %q: %w", q.Get("end"), err)
	}
	w := region.Pixels(start, end)
	return w, w.Validate()
}

// request resolves the extractor and window named in the query
func (h HTTPWrapper) request(r *http.Request) (*extract.Extractor2D, region.Window, error) {
	q := r.URL.Query()
	e, err := h.set.ByName(q.Get("extractor"))
	if err != nil {
		return nil, region.Window{}, err
	}
	w, err := ParseWindow(q)
	return e, w, err
}

// statusFor maps extraction errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, grid.ErrShapeMismatch), errors.Is(err, extract.ErrAliasedAccumulator):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// nullable converts NaN to nil so the values survive JSON encoding
func nullable(xs []float64) []*float64 {
	out := make([]*float64, len(xs))
	for i := range xs {
		if !math.IsNaN(xs[i]) {
			out[i] = &xs[i]
		}
	}
	return out
}

// GetLayout replies with the dataset's layout
func (h HTTPWrapper) GetLayout(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, NewLayoutJSON(h.Dataset.Layout))
}

// GetRegions replies with the regions the extractor derives for the window
func (h HTTPWrapper) GetRegions(w http.ResponseWriter, r *http.Request) {
	e, win, err := h.request(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rs, err := e.RegionList(win)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	server.WriteJSON(w, quads(rs))
}

// StackedJSON is the wire form of a stacked patch
type StackedJSON struct {
	Values [][]float64 `json:"values"`
	Mask   [][]bool    `json:"mask"`
	Counts [][]int     `json:"counts"`
}

// GetStacked replies with the stacked patch of the extractor
func (h HTTPWrapper) GetStacked(w http.ResponseWriter, r *http.Request) {
	e, win, err := h.request(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a := h.Dataset.Data
	st, err := e.Stacked(a, win)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	counts, err := e.StackedTotalPixels(a, win)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	rows, cols := st.Dims()
	out := StackedJSON{Values: make([][]float64, rows), Mask: make([][]bool, rows), Counts: counts}
	for i := 0; i < rows; i++ {
		out.Values[i] = append([]float64(nil), st.RawRowView(i)...)
		out.Mask[i] = make([]bool, cols)
		for j := range out.Mask[i] {
			out.Mask[i][j] = st.Masked(i, j)
		}
	}
	server.WriteJSON(w, out)
}

// BinnedJSON is the wire form of a binned profile.  Masked pixels are null
type BinnedJSON struct {
	Values []*float64 `json:"values"`
	Scale  float64    `json:"scale"`

	// InRegion is the part of the profile inside the injection regions, absent if none
	InRegion *[2]int `json:"inRegion,omitempty"`
}

func (h HTTPWrapper) binned(e *extract.Extractor2D, win region.Window) (*grid.Array1D, error) {
	return e.Binned(h.Dataset.Data, win)
}

// GetBinned replies with the binned profile of the extractor
func (h HTTPWrapper) GetBinned(w http.ResponseWriter, r *http.Request) {
	e, win, err := h.request(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b, err := h.binned(e, win)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	vals := b.Values()
	for i := range vals {
		if b.Masked(i) {
			vals[i] = math.NaN()
		}
	}
	out := BinnedJSON{Values: nullable(vals), Scale: b.Scale}
	if in, ok, err := e.BinnedRegion1D(win); err == nil && ok {
		out.InRegion = &[2]int{in.X0(), in.X1()}
	}
	server.WriteJSON(w, out)
}

// GetBinnedPNG replies with a plot of the binned profile
func (h HTTPWrapper) GetBinnedPNG(w http.ResponseWriter, r *http.Request) {
	e, win, err := h.request(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b, err := h.binned(e, win)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	prof := profileplot.Profile{Name: e.Name(), Data: b}
	if !win.IsFromEnd() {
		prof.Offset = win.Start
	}
	w.Header().Set("Content-Type", "image/png")
	if err := profileplot.WritePNG(w, fmt.Sprintf("%s %s", e.Name(), win), []profileplot.Profile{prof}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GetStatistics replies with one value per region, null for fully masked patches
func (h HTTPWrapper) GetStatistics(w http.ResponseWriter, r *http.Request) {
	e, win, err := h.request(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s, err := mathx.ParseStatistic(r.URL.Query().Get("statistic"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	vals, err := e.StatisticList(h.Dataset.Data, win, s)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	server.WriteJSON(w, nullable(vals))
}

// PostRecord writes the stacked patch of the extractor named in the query to
// the recorder, or the whole frame if no extractor is given, and replies with
// the path written
func (h HTTPWrapper) PostRecord(w http.ResponseWriter, r *http.Request) {
	if h.Recorder == nil || !h.Recorder.IsEnabled() {
		http.Error(w, ErrRecorderDisabled.Error(), http.StatusConflict)
		return
	}
	product := h.Dataset.Data
	cards := []fitsio.Card{{Name: "PRODUCT", Value: "data", Comment: "charge injection product"}}
	if r.URL.Query().Get("extractor") != "" {
		e, win, err := h.request(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if product, err = e.Stacked(h.Dataset.Data, win); err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		cards = []fitsio.Card{
			{Name: "PRODUCT", Value: e.Name(), Comment: "charge injection product"},
			{Name: "WINDOW", Value: win.String(), Comment: "extraction window"},
		}
	}
	fn, err := h.Recorder.Record(product, cards)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hp := server.HumanPayload{T: types.String, String: fn}
	hp.EncodeAndRespond(w, r)
}
