/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/profile"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/meshtvprep/InputParameters"
	"github.com/notargets/meshtvprep/prep"
)

// PrepCmd represents the prep command
var PrepCmd = &cobra.Command{
	Use:   "prep [flags] root_file...",
	Short: "Preprocess a time series of multi-domain mesh containers",
	Long: `
Preprocesses one container root file per state, in state order. Any flag can
also come from the config file or from a MESHTVPREP_ prefixed environment
variable, and run parameters can be given in a YAML file with -I.

meshtvprep prep -o run --lowRes --lowResSize 16,16,16 data_*.root.mtv`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runPrep(cmd, args); err != nil {
			fmt.Fprintf(os.Stderr, "meshtvprep: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(PrepCmd)
	def := prep.DefaultOptions()
	PrepCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file of run parameters, flags override it")
	PrepCmd.Flags().StringP("prefix", "o", def.Prefix, "output file name prefix")
	PrepCmd.Flags().String("outDir", def.OutDir, "output directory")
	PrepCmd.Flags().StringSlice("vars", nil, "variables to process, all when empty")
	PrepCmd.Flags().Bool("lowRes", def.LowRes, "write a low resolution resampled companion of every mesh")
	PrepCmd.Flags().String("lowResSize", sizeString(def.LowResSize), "low resolution cells per axis, x,y,z")
	PrepCmd.Flags().Bool("medRes", def.MedRes, "write a medium resolution resampled companion of every mesh")
	PrepCmd.Flags().String("medResSize", sizeString(def.MedResSize), "medium resolution cells per axis, x,y,z")
	PrepCmd.Flags().Bool("onionPeel", def.OnionPeel, "write node to zone adjacency and material boundary lists")
	PrepCmd.Flags().Bool("intervalTree", def.IntervalTree, "write per state domain extent indexes")
	PrepCmd.Flags().Bool("fullConversion", def.FullConversion, "write the domain meshes, variables and materials")
	PrepCmd.Flags().IntP("workers", "w", def.Workers, "number of parallel workers")
	PrepCmd.Flags().Bool("singleFile", def.SingleFile, "all workers share one mesh file and one file per state")
	PrepCmd.Flags().String("catalog", "", "SQLite file receiving the domain extents")
	PrepCmd.Flags().String("metricsFile", "", "Prometheus text file receiving the run metrics")
	PrepCmd.Flags().String("profile", "", "profile the run: cpu or mem")
	_ = viper.BindPFlags(PrepCmd.Flags())
}

func runPrep(cmd *cobra.Command, args []string) error {
	opts, err := prepOptions(args)
	if err != nil {
		return err
	}
	switch mode := viper.GetString("profile"); mode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(opts.OutDir), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(opts.OutDir), profile.Quiet).Stop()
	default:
		return fmt.Errorf("unknown profile mode %q, use cpu or mem", mode)
	}
	p, err := prep.New(opts)
	if err != nil {
		return err
	}
	return p.Run(context.Background())
}

// prepOptions layers the defaults, the run parameters file and whatever
// viper has from flags, config or environment, in that order.
func prepOptions(args []string) (opts prep.Options, err error) {
	opts = prep.DefaultOptions()
	opts.Fs = appFs
	opts.Logger = newLogger()
	if file := viper.GetString("inputConditionsFile"); file != "" {
		var data []byte
		if data, err = afero.ReadFile(appFs, file); err != nil {
			return
		}
		pp := &InputParameters.PrepParameters{}
		if err = pp.Parse(data); err != nil {
			return opts, fmt.Errorf("%s: %w", file, err)
		}
		if viper.GetBool("verbose") {
			pp.Print()
		}
		if err = pp.Apply(&opts); err != nil {
			return opts, fmt.Errorf("%s: %w", file, err)
		}
	}
	if viper.IsSet("prefix") {
		opts.Prefix = viper.GetString("prefix")
	}
	if viper.IsSet("outDir") {
		opts.OutDir = viper.GetString("outDir")
	}
	if viper.IsSet("vars") {
		opts.Vars = viper.GetStringSlice("vars")
	}
	for _, b := range []struct {
		key string
		dst *bool
	}{
		{"lowRes", &opts.LowRes},
		{"medRes", &opts.MedRes},
		{"onionPeel", &opts.OnionPeel},
		{"intervalTree", &opts.IntervalTree},
		{"fullConversion", &opts.FullConversion},
		{"singleFile", &opts.SingleFile},
	} {
		if viper.IsSet(b.key) {
			*b.dst = viper.GetBool(b.key)
		}
	}
	if viper.IsSet("lowResSize") {
		if opts.LowResSize, err = parseSize(viper.GetString("lowResSize")); err != nil {
			return
		}
	}
	if viper.IsSet("medResSize") {
		if opts.MedResSize, err = parseSize(viper.GetString("medResSize")); err != nil {
			return
		}
	}
	if viper.IsSet("workers") {
		opts.Workers = viper.GetInt("workers")
	}
	if viper.IsSet("catalog") {
		opts.Catalog = viper.GetString("catalog")
	}
	if viper.IsSet("metricsFile") {
		opts.MetricsFile = viper.GetString("metricsFile")
	}
	if len(args) != 0 {
		opts.Inputs = args
	}
	if len(opts.Inputs) == 0 {
		err = fmt.Errorf("must supply at least one input root file, as arguments or Inputs in the run parameters file")
	}
	return
}

// parseSize reads a resolution given as x,y,z
func parseSize(s string) (size [3]int, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return size, fmt.Errorf("resolution %q is not x,y,z", s)
	}
	for i, p := range parts {
		if size[i], err = strconv.Atoi(strings.TrimSpace(p)); err != nil {
			return size, fmt.Errorf("resolution %q: %w", s, err)
		}
	}
	return
}

func sizeString(size [3]int) string {
	return fmt.Sprintf("%d,%d,%d", size[0], size[1], size[2])
}
