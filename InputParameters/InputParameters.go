package InputParameters

import (
	"fmt"
	"strings"

	"github.com/ghodss/yaml"

	"github.com/notargets/meshtvprep/prep"
)

// Parameters obtained from the YAML run file. Unset entries leave the
// corresponding option alone.
type PrepParameters struct {
	Title          string   `json:"Title"`
	Prefix         string   `json:"Prefix"`
	OutDir         string   `json:"OutDir"`
	Vars           []string `json:"Vars"`
	LowRes         *bool    `json:"LowRes"`
	LowResSize     []int    `json:"LowResSize"`
	MedRes         *bool    `json:"MedRes"`
	MedResSize     []int    `json:"MedResSize"`
	OnionPeel      *bool    `json:"OnionPeel"`
	IntervalTree   *bool    `json:"IntervalTree"`
	FullConversion *bool    `json:"FullConversion"`
	Inputs         []string `json:"Inputs"` // one root file per state
	Workers        int      `json:"Workers"`
	SingleFile     *bool    `json:"SingleFile"`
	Catalog        string   `json:"Catalog"`
	MetricsFile    string   `json:"MetricsFile"`
}

func (pp *PrepParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, pp)
}

// Apply copies every parameter the file sets onto opts
func (pp *PrepParameters) Apply(opts *prep.Options) (err error) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setBool := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	setSize := func(dst *[3]int, name string, v []int) {
		if len(v) == 0 || err != nil {
			return
		}
		if len(v) != 3 {
			err = fmt.Errorf("%s needs 3 entries, got %d", name, len(v))
			return
		}
		copy(dst[:], v)
	}
	setString(&opts.Prefix, pp.Prefix)
	setString(&opts.OutDir, pp.OutDir)
	setString(&opts.Catalog, pp.Catalog)
	setString(&opts.MetricsFile, pp.MetricsFile)
	if len(pp.Vars) != 0 {
		opts.Vars = pp.Vars
	}
	if len(pp.Inputs) != 0 {
		opts.Inputs = pp.Inputs
	}
	if pp.Workers > 0 {
		opts.Workers = pp.Workers
	}
	setBool(&opts.LowRes, pp.LowRes)
	setBool(&opts.MedRes, pp.MedRes)
	setBool(&opts.OnionPeel, pp.OnionPeel)
	setBool(&opts.IntervalTree, pp.IntervalTree)
	setBool(&opts.FullConversion, pp.FullConversion)
	setBool(&opts.SingleFile, pp.SingleFile)
	setSize(&opts.LowResSize, "LowResSize", pp.LowResSize)
	setSize(&opts.MedResSize, "MedResSize", pp.MedResSize)
	return
}

func (pp *PrepParameters) Print() {
	onOff := func(b *bool) string {
		if b == nil {
			return "default"
		}
		return fmt.Sprint(*b)
	}
	fmt.Printf("\"%s\"\t\t= Title\n", pp.Title)
	fmt.Printf("[%s]\t\t\t= Prefix\n", pp.Prefix)
	fmt.Printf("[%s]\t\t\t= OutDir\n", pp.OutDir)
	fmt.Printf("[%s]\t\t\t= Vars\n", strings.Join(pp.Vars, ","))
	fmt.Printf("[%s] %v\t\t= LowRes\n", onOff(pp.LowRes), pp.LowResSize)
	fmt.Printf("[%s] %v\t\t= MedRes\n", onOff(pp.MedRes), pp.MedResSize)
	fmt.Printf("[%s]\t\t\t= OnionPeel\n", onOff(pp.OnionPeel))
	fmt.Printf("[%s]\t\t\t= IntervalTree\n", onOff(pp.IntervalTree))
	fmt.Printf("[%s]\t\t\t= FullConversion\n", onOff(pp.FullConversion))
	fmt.Printf("[%d]\t\t\t\t= Workers\n", pp.Workers)
	for i, in := range pp.Inputs {
		fmt.Printf("Inputs[%d] = %s\n", i, in)
	}
}
