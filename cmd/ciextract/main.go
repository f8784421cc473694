package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "gopkg.in/yaml.v2"

	"github.com/nasa-jpl/cticalib/cifits"
	"github.com/nasa-jpl/cticalib/imgrec"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "ciextract.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(DefaultConfig(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `ciextract pulls the charge injection features out of CCD calibration frames
and serves them to fitting code, either printed, plotted, written as FITS or over HTTP.

Usage:
	ciextract <command>

Commands:
	run
	serve
	plot
	calibrate
	simulate
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `ciextract is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

Use mkconf to write the defaults to ciextract.yml and edit from there.

Regions and strips are (y0, y1, x0, x1) in the raw orientation of the file,
half-open, rows then columns.  The frame is flipped so the readout corner sits
at row 0, column 0 before anything is extracted.  corner may be one of
top-left, top-right, bottom-left, bottom-right or a tuple such as "(1,0)".  To
pick the corner by quadrant, fill corners with quadrant: corner pairs and set
quadrant.

Windows are {start, end} relative to the anchor edge of each region, or
{fromEnd: n} for the last n pixels.  Extractors are named:
	parallel-fpr, parallel-eper, serial-fpr, serial-eper,
	parallel-overscan, serial-prescan, serial-overscan

Commands:
	run        print binned profiles and per-region statistics
	serve      expose the extractors over HTTP at addr, GET /endpoints lists routes
	plot       write the binned profiles to plotPath as a PNG
	calibrate  record the parallel and serial calibration crops under recorder.root
	simulate   write a synthetic frame to files.data`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("ciextract version %v\n", Version)
}

func loadconf() Config {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	return c
}

func run() {
	c := loadconf()
	d, err := LoadDataset(c, fileLoader(c))
	if err != nil {
		log.Fatal(err)
	}
	if err = Report(os.Stdout, c, d); err != nil {
		log.Fatal(err)
	}
}

func serve() {
	c := loadconf()
	d, err := LoadDataset(c, fileLoader(c))
	if err != nil {
		log.Fatal(err)
	}
	rec := imgrec.New(c.Recorder.Root, c.Recorder.Prefix)
	mux := BuildMux(d, rec)
	log.Println("now listening for requests at ", c.Addr)
	log.Fatal(http.ListenAndServe(c.Addr, mux))
}

func plot() {
	c := loadconf()
	d, err := LoadDataset(c, fileLoader(c))
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(c.PlotPath)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err = Plot(f, c, d); err != nil {
		log.Fatal(err)
	}
	log.Println("wrote", c.PlotPath)
}

func calibrate() {
	c := loadconf()
	d, err := LoadDataset(c, fileLoader(c))
	if err != nil {
		log.Fatal(err)
	}
	paths, err := Calibrate(c, d, imgrec.New(c.Recorder.Root, c.Recorder.Prefix))
	if err != nil {
		log.Fatal(err)
	}
	for _, p := range paths {
		log.Println("wrote", p)
	}
}

func sim() {
	c := loadconf()
	a, err := Simulate(c)
	if err != nil {
		log.Fatal(err)
	}
	if err = cifits.WriteFile(c.Files.Data, a, nil); err != nil {
		log.Fatal(err)
	}
	log.Println("wrote", c.Files.Data)
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "serve":
		serve()
		return
	case "plot":
		plot()
		return
	case "calibrate":
		calibrate()
		return
	case "simulate":
		sim()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
