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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/meshtvprep/mesh"
)

type importJob struct {
	MeshFile string
	Out      string
	Prefix   string
	Domains  int
	States   int
	Files    int
	Ghosts   bool
	Verbose  bool
}

// ImportCmd represents the import command
var ImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Decompose an SU2 mesh into a multi-domain container dataset",
	Long: `
Reads an SU2 grid, splits its zones into domains and writes a time series of
container files with a zone centred and a node centred synthetic field per
state and a two material split along x, ready for the prep command.

meshtvprep import --mesh grid.su2 --domains 8 --states 4 --out data`,
	Run: func(cmd *cobra.Command, args []string) {
		job := &importJob{}
		job.MeshFile, _ = cmd.Flags().GetString("mesh")
		job.Out, _ = cmd.Flags().GetString("out")
		job.Prefix, _ = cmd.Flags().GetString("prefix")
		job.Domains, _ = cmd.Flags().GetInt("domains")
		job.States, _ = cmd.Flags().GetInt("states")
		job.Files, _ = cmd.Flags().GetInt("files")
		job.Ghosts, _ = cmd.Flags().GetBool("ghosts")
		job.Verbose = viper.GetBool("verbose")
		roots, err := runImport(job)
		if err != nil {
			fmt.Fprintf(os.Stderr, "meshtvprep: %v\n", err)
			os.Exit(1)
		}
		for _, r := range roots {
			fmt.Println(r)
		}
	},
}

func init() {
	rootCmd.AddCommand(ImportCmd)
	ImportCmd.Flags().StringP("mesh", "F", "", "grid file to read in SU2 format")
	ImportCmd.Flags().StringP("out", "o", ".", "output directory")
	ImportCmd.Flags().String("prefix", "data", "output file name prefix")
	ImportCmd.Flags().IntP("domains", "d", 4, "number of domains")
	ImportCmd.Flags().IntP("states", "s", 1, "number of states")
	ImportCmd.Flags().Int("files", 1, "domain files per state")
	ImportCmd.Flags().Bool("ghosts", true, "give every domain a layer of ghost zones")
}

func runImport(job *importJob) (roots []string, err error) {
	if len(job.MeshFile) == 0 {
		return nil, fmt.Errorf("must supply a grid file (-F, --mesh) in SU2 format")
	}
	m, err := mesh.ReadSU2(appFs, job.MeshFile)
	if err != nil {
		return nil, err
	}
	if job.Verbose {
		m.PrintStatistics()
	}
	pieces, err := mesh.Decompose(m, job.Domains, job.Ghosts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", job.MeshFile, err)
	}
	newLogger().Info("mesh decomposed", "file", job.MeshFile, "zones", m.NumZones(),
		"domains", len(pieces), "states", job.States)
	return mesh.WriteContainer(appFs, job.Out, pieces, mesh.DatasetOptions{
		Prefix: job.Prefix,
		States: job.States,
		Files:  job.Files,
	})
}
