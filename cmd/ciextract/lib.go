package main

import (
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strings"

	"github.com/astrogo/fitsio"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/nasa-jpl/cticalib/cifits"
	"github.com/nasa-jpl/cticalib/dataset"
	"github.com/nasa-jpl/cticalib/grid"
	"github.com/nasa-jpl/cticalib/imgrec"
	"github.com/nasa-jpl/cticalib/layout"
	"github.com/nasa-jpl/cticalib/mask"
	"github.com/nasa-jpl/cticalib/mathx"
	"github.com/nasa-jpl/cticalib/profileplot"
	"github.com/nasa-jpl/cticalib/region"
	"github.com/nasa-jpl/cticalib/roe"
	"github.com/nasa-jpl/cticalib/server"
	"github.com/nasa-jpl/cticalib/server/middleware/locker"
	"github.com/nasa-jpl/cticalib/simulate"
)

// LayoutConfig holds the frame geometry in the detector's raw orientation.
// Regions and strips are (y0, y1, x0, x1); an empty strip is absent
type LayoutConfig struct {
	Shape            [2]int   `yaml:"shape" koanf:"shape"`
	Regions          [][4]int `yaml:"regions" koanf:"regions"`
	ParallelOverscan []int    `yaml:"parallelOverscan" koanf:"parallelOverscan"`
	SerialPrescan    []int    `yaml:"serialPrescan" koanf:"serialPrescan"`
	SerialOverscan   []int    `yaml:"serialOverscan" koanf:"serialOverscan"`
}

// MaskConfig selects the FPR and EPER pixels excluded before extraction.  A
// window with every field zero masks nothing
type MaskConfig struct {
	ParallelFPR  region.Window `yaml:"parallelFPR" koanf:"parallelFPR"`
	ParallelEPER region.Window `yaml:"parallelEPER" koanf:"parallelEPER"`
	SerialFPR    region.Window `yaml:"serialFPR" koanf:"serialFPR"`
	SerialEPER   region.Window `yaml:"serialEPER" koanf:"serialEPER"`
}

// CalibrationConfig holds the crops written by the calibrate command
type CalibrationConfig struct {
	Columns [2]int `yaml:"columns" koanf:"columns"`
	Rows    [2]int `yaml:"rows" koanf:"rows"`
}

// RecorderConfig sets where products are written
type RecorderConfig struct {
	Root   string `yaml:"root" koanf:"root"`
	Prefix string `yaml:"prefix" koanf:"prefix"`
}

// SimulateConfig parameterises the simulate command
type SimulateConfig struct {
	Seed        int64                `yaml:"seed" koanf:"seed"`
	Injection   layout.NonUniform    `yaml:"injection" koanf:"injection"`
	ReadNoise   float64              `yaml:"readNoise" koanf:"readNoise"`
	Persistence simulate.Persistence `yaml:"persistence" koanf:"persistence"`
}

// Config is a struct that holds the parameters of every command.  It is
// populated from defaults overlaid with the yaml file
type Config struct {
	// Addr is the address to listen at
	Addr string `yaml:"addr" koanf:"addr"`

	// Quadrant, when set, selects the readout corner from Corners.  Otherwise
	// Corner is used directly, e.g. "top-right" or "(0,1)"
	Quadrant string            `yaml:"quadrant" koanf:"quadrant"`
	Corner   string            `yaml:"corner" koanf:"corner"`
	Corners  map[string]string `yaml:"corners" koanf:"corners"`

	PixelScales [2]float64          `yaml:"pixelScales" koanf:"pixelScales"`
	Layout      LayoutConfig        `yaml:"layout" koanf:"layout"`
	Files       dataset.Paths       `yaml:"files" koanf:"files"`
	Load        dataset.LoadOptions `yaml:"load" koanf:"load"`
	Mask        MaskConfig          `yaml:"mask" koanf:"mask"`

	// Windows maps extractor names, e.g. "parallel-eper", to the window
	// reported by run and plot
	Windows   map[string]region.Window `yaml:"windows" koanf:"windows"`
	Statistic string                   `yaml:"statistic" koanf:"statistic"`

	Calibration CalibrationConfig `yaml:"calibration" koanf:"calibration"`
	Recorder    RecorderConfig    `yaml:"recorder" koanf:"recorder"`
	Simulate    SimulateConfig    `yaml:"simulate" koanf:"simulate"`

	// PlotPath is where the plot command writes its PNG
	PlotPath string `yaml:"plotPath" koanf:"plotPath"`
}

// DefaultConfig is a small two-region frame
func DefaultConfig() Config {
	return Config{
		Addr:        ":8000",
		Corner:      "top-left",
		Corners:     map[string]string{},
		PixelScales: [2]float64{0.1, 0.1},
		Layout: LayoutConfig{
			Shape:            [2]int{100, 60},
			Regions:          [][4]int{{10, 30, 5, 55}, {60, 80, 5, 55}},
			ParallelOverscan: []int{90, 100, 5, 55},
			SerialPrescan:    []int{0, 100, 0, 5},
			SerialOverscan:   []int{0, 100, 55, 60},
		},
		Files:     dataset.Paths{Data: "ci.fits"},
		Load:      dataset.LoadOptions{NoiseMapValue: 1, PreCTINorm: 1000},
		Windows:   map[string]region.Window{"parallel-eper": region.Pixels(0, 10), "serial-eper": region.Pixels(0, 5)},
		Statistic: "mean",
		Calibration: CalibrationConfig{
			Columns: [2]int{5, 15},
			Rows:    [2]int{0, 5},
		},
		Recorder: RecorderConfig{Root: "products", Prefix: "ci"},
		Simulate: SimulateConfig{
			Seed:        1,
			Injection:   layout.NonUniform{Norm: 1000, ColumnSigma: 50, MaxNorm: 1500},
			ReadNoise:   4,
			Persistence: simulate.Persistence{Amplitude: 20, Scatter: 0.1, Decay: 3},
		},
		PlotPath: "binned.png",
	}
}

func optionalRegion(name string, q []int) (*region.Region2D, error) {
	if len(q) == 0 {
		return nil, nil
	}
	if len(q) != 4 {
		return nil, fmt.Errorf("%s: %w: want (y0, y1, x0, x1), got %v", name, region.ErrInvalidRegion, q)
	}
	r, err := region.NewRegion2D(q[0], q[1], q[2], q[3])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &r, nil
}

// RawLayout builds the layout in the detector's raw orientation
func (c Config) RawLayout() (*layout.Layout2D, error) {
	regions, err := region.List2D(c.Layout.Regions)
	if err != nil {
		return nil, err
	}
	po, err := optionalRegion("parallel overscan", c.Layout.ParallelOverscan)
	if err != nil {
		return nil, err
	}
	sp, err := optionalRegion("serial prescan", c.Layout.SerialPrescan)
	if err != nil {
		return nil, err
	}
	so, err := optionalRegion("serial overscan", c.Layout.SerialOverscan)
	if err != nil {
		return nil, err
	}
	return layout.New2D(c.Layout.Shape, regions, po, sp, so)
}

// ReadoutCorner resolves the corner the frame is read out at
func (c Config) ReadoutCorner() (roe.Corner, error) {
	if c.Quadrant == "" {
		return roe.ParseCorner(c.Corner)
	}
	table := roe.Table{}
	for id, s := range c.Corners {
		corner, err := roe.ParseCorner(s)
		if err != nil {
			return roe.Corner{}, fmt.Errorf("corner for quadrant %s: %w", id, err)
		}
		table[id] = corner
	}
	return table.Lookup(c.Quadrant)
}

func enabled(w region.Window) *region.Window {
	if w == (region.Window{}) {
		return nil
	}
	return &w
}

// MaskSettings converts the mask config, dropping zero windows
func (c Config) MaskSettings() mask.Settings {
	return mask.Settings{
		ParallelFPR:  enabled(c.Mask.ParallelFPR),
		ParallelEPER: enabled(c.Mask.ParallelEPER),
		SerialFPR:    enabled(c.Mask.SerialFPR),
		SerialEPER:   enabled(c.Mask.SerialEPER),
	}
}

// LoadDataset reads, normalizes and masks the configured dataset
func LoadDataset(c Config, ld dataset.Loader) (*dataset.ImagingCI, error) {
	raw, err := c.RawLayout()
	if err != nil {
		return nil, err
	}
	corner, err := c.ReadoutCorner()
	if err != nil {
		return nil, err
	}
	d, err := dataset.LoadImagingCI(ld, c.Files, raw, corner, c.Load)
	if err != nil {
		return nil, err
	}
	m, err := mask.FPRAndEPER2D(d.Layout, c.MaskSettings())
	if err != nil {
		return nil, err
	}
	return d.ApplyMask(m)
}

// sortedWindows returns the configured extractor names in order
func sortedWindows(c Config) []string {
	names := make([]string, 0, len(c.Windows))
	for name := range c.Windows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func formatProfile(b *grid.Array1D) string {
	parts := make([]string, b.Len())
	for i := range parts {
		if b.Masked(i) {
			parts[i] = "--"
			continue
		}
		parts[i] = fmt.Sprint(mathx.Round(b.At(i), 0.001))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Report writes the binned profile and per-region statistic of every
// configured extractor to w
func Report(w io.Writer, c Config, d *dataset.ImagingCI) error {
	s, err := mathx.ParseStatistic(c.Statistic)
	if err != nil {
		return err
	}
	set := d.Extractors()
	for _, name := range sortedWindows(c) {
		win := c.Windows[name]
		e, err := set.ByName(name)
		if err != nil {
			return err
		}
		b, err := e.Binned(d.Data, win)
		if err != nil {
			return err
		}
		stats, err := e.StatisticList(d.Data, win, s)
		if err != nil {
			return err
		}
		for i := range stats {
			stats[i] = mathx.Round(stats[i], 0.001)
		}
		fmt.Fprintf(w, "%s %s\n\tbinned: %s\n\t%s per region: %v\n", name, win, formatProfile(b), s, stats)
	}
	return nil
}

// Plot draws the binned profile of every configured extractor
func Plot(w io.Writer, c Config, d *dataset.ImagingCI) error {
	set := d.Extractors()
	var profiles []profileplot.Profile
	for _, name := range sortedWindows(c) {
		win := c.Windows[name]
		e, err := set.ByName(name)
		if err != nil {
			return err
		}
		b, err := e.Binned(d.Data, win)
		if err != nil {
			return err
		}
		p := profileplot.Profile{Name: name, Data: b}
		if !win.IsFromEnd() {
			p.Offset = win.Start
		}
		profiles = append(profiles, p)
	}
	return profileplot.WritePNG(w, c.Files.Data, profiles)
}

// Calibrate records the parallel and serial calibration crops of the data
// and returns the paths written
func Calibrate(c Config, d *dataset.ImagingCI, rec *imgrec.Recorder) ([]string, error) {
	par, err := d.ParallelCalibration(c.Calibration.Columns)
	if err != nil {
		return nil, err
	}
	ser, err := d.SerialCalibration(c.Calibration.Rows)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, crop := range []struct {
		name string
		d    *dataset.ImagingCI
	}{{"parallel", par}, {"serial", ser}} {
		fn, err := rec.Record(crop.d.Data, calibrationCards(crop.name, crop.d.Layout))
		if err != nil {
			return nil, err
		}
		paths = append(paths, fn)
	}
	return paths, nil
}

// calibrationCards records the cropped layout in the header, one card per
// region since FITS string values are limited to 68 characters
func calibrationCards(name string, l *layout.Layout2D) []fitsio.Card {
	cards := []fitsio.Card{{Name: "PRODUCT", Value: name + "-calibration", Comment: "charge injection product"}}
	for i, r := range l.Regions {
		cards = append(cards, fitsio.Card{Name: fmt.Sprintf("CIREG%d", i), Value: r.String(), Comment: "(y0, y1, x0, x1)"})
	}
	if l.SerialPrescan != nil {
		cards = append(cards, fitsio.Card{Name: "SPRESCAN", Value: l.SerialPrescan.String()})
	}
	if l.SerialOverscan != nil {
		cards = append(cards, fitsio.Card{Name: "SOVERSCN", Value: l.SerialOverscan.String()})
	}
	if l.ParallelOverscan != nil {
		cards = append(cards, fitsio.Card{Name: "POVERSCN", Value: l.ParallelOverscan.String()})
	}
	return cards
}

// Simulate builds a synthetic frame on the raw layout
func Simulate(c Config) (*grid.Array2D, error) {
	l, err := c.RawLayout()
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(c.Simulate.Seed))
	a, err := l.PreCTIDataNonUniform(c.Simulate.Injection, rng, grid.PixelScales(c.PixelScales))
	if err != nil {
		return nil, err
	}
	if c.Simulate.Persistence.Amplitude != 0 {
		if err := simulate.AddReadoutPersistence(a, l, c.Simulate.Persistence, rng); err != nil {
			return nil, err
		}
	}
	simulate.AddReadNoise(a, c.Simulate.ReadNoise, rng)
	return a, nil
}

// BuildMux mounts the dataset's routes at the root along with /endpoints,
// which lists every route as JSON, and /lock, which freezes the routes that
// write to disk
func BuildMux(d *dataset.ImagingCI, rec *imgrec.Recorder) chi.Router {
	root := chi.NewRouter()
	lk := locker.New()
	root.Use(middleware.Logger)
	root.Use(lk.Check)
	httper := dataset.NewHTTPWrapper(d, rec)
	locker.Inject(httper, lk)
	httper.RT().Bind(root)
	root.Get("/endpoints", server.ListEndpoints(httper.RT()))
	return root
}

func fileLoader(c Config) cifits.FileLoader {
	return cifits.FileLoader{Scales: grid.PixelScales(c.PixelScales)}
}
