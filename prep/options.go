package prep

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/spf13/afero"
)

// Options is the already parsed command surface of a run
type Options struct {
	Prefix         string   // output file name prefix
	OutDir         string   // output directory
	Vars           []string // variable allow list, empty means every variable
	LowRes         bool
	LowResSize     [3]int
	MedRes         bool
	MedResSize     [3]int
	OnionPeel      bool
	IntervalTree   bool
	FullConversion bool
	Inputs         []string // one root file per state, in state order
	Workers        int
	SingleFile     bool   // all workers share one mesh file and one file per state
	Catalog        string // optional SQLite extent catalog
	MetricsFile    string // optional Prometheus textfile
	Fs             afero.Fs
	Logger         *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		Prefix:         "meshtv",
		OutDir:         ".",
		LowResSize:     [3]int{16, 16, 16},
		MedResSize:     [3]int{64, 64, 64},
		OnionPeel:      true,
		IntervalTree:   true,
		FullConversion: true,
		Workers:        runtime.NumCPU(),
	}
}

// Validate fills defaults and checks the options make a run
func (o *Options) Validate() error {
	if len(o.Inputs) == 0 {
		return fmt.Errorf("no input files")
	}
	if o.Prefix == "" {
		return fmt.Errorf("empty output prefix")
	}
	if ValidName(o.Prefix) != o.Prefix {
		return fmt.Errorf("output prefix %q contains characters not allowed in names", o.Prefix)
	}
	if o.OutDir == "" {
		o.OutDir = "."
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	check := func(name string, on bool, size [3]int) error {
		if !on {
			return nil
		}
		for d, n := range size {
			if n < 1 {
				return fmt.Errorf("%s resolution axis %d is %d, must be positive", name, d, n)
			}
		}
		return nil
	}
	if err := check("low", o.LowRes, o.LowResSize); err != nil {
		return err
	}
	if err := check("medium", o.MedRes, o.MedResSize); err != nil {
		return err
	}
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return nil
}

// wantVar applies the allow list
func (o *Options) wantVar(name string) bool {
	if len(o.Vars) == 0 {
		return true
	}
	for _, v := range o.Vars {
		if v == name {
			return true
		}
	}
	return false
}

func (o *Options) resampling() bool { return o.LowRes || o.MedRes }
