package cmd

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/meshtvprep/container"
	"github.com/notargets/meshtvprep/prep"
)

const gridSU2 = `% 3x1 quads
NDIME= 2
NELEM= 3
9 0 1 5 4 0
9 1 2 6 5 1
9 2 3 7 6 2
NPOIN= 8
0. 0. 0
1. 0. 1
2. 0. 2
3. 0. 3
0. 1. 4
1. 1. 5
2. 1. 6
3. 1. 7
NMARK= 0
`

const runYAML = `
Title: "cmd test"
Prefix: fromfile
OutDir: /out
LowRes: true
LowResSize: [4, 2, 1]
Workers: 2
`

func TestParseSize(t *testing.T) {
	size, err := parseSize("16, 8,4")
	require.NoError(t, err)
	assert.Equal(t, [3]int{16, 8, 4}, size)
	_, err = parseSize("16,8")
	assert.Error(t, err)
	_, err = parseSize("a,b,c")
	assert.Error(t, err)
	assert.Equal(t, "1,2,3", sizeString([3]int{1, 2, 3}))
}

func TestImportAndPrep(t *testing.T) {
	appFs = afero.NewMemMapFs()
	defer func() { appFs = afero.NewOsFs() }()
	require.NoError(t, afero.WriteFile(appFs, "grid.su2", []byte(gridSU2), 0o644))
	require.NoError(t, afero.WriteFile(appFs, "run.yaml", []byte(runYAML), 0o644))

	var roots []string
	{ // Import a three zone strip as three domains over two states
		var err error
		_, err = runImport(&importJob{Out: "/data"})
		assert.Error(t, err)
		roots, err = runImport(&importJob{MeshFile: "grid.su2", Out: "/data", Prefix: "grid",
			Domains: 3, States: 2, Files: 1, Ghosts: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"/data/grid_0000.root.mtv", "/data/grid_0001.root.mtv"}, roots)
	}
	{ // No inputs is an error
		_, err := prepOptions(nil)
		assert.Error(t, err)
	}
	viper.Set("inputConditionsFile", "run.yaml")
	{ // Run parameters file, with flags layered on top
		opts, err := prepOptions(roots)
		require.NoError(t, err)
		assert.Equal(t, "fromfile", opts.Prefix)
		assert.True(t, opts.LowRes)
		assert.Equal(t, [3]int{4, 2, 1}, opts.LowResSize)
		assert.Equal(t, 2, opts.Workers)
		viper.Set("prefix", "grid")
		viper.Set("medResSize", "8,4,1")
		opts, err = prepOptions(roots)
		require.NoError(t, err)
		assert.Equal(t, "grid", opts.Prefix)
		assert.Equal(t, [3]int{8, 4, 1}, opts.MedResSize)
		assert.Equal(t, roots, opts.Inputs)
	}
	{ // Prepare the imported dataset
		opts, err := prepOptions(roots)
		require.NoError(t, err)
		p, err := prep.New(opts)
		require.NoError(t, err)
		require.NoError(t, p.Run(context.Background()))
		f, err := container.Open(appFs, "/out/grid.root.mtv")
		require.NoError(t, err)
		n, err := f.Root().Attr(prep.NStatesAttr)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		sd, err := f.Cd("state_0001")
		require.NoError(t, err)
		_, err = sd.MultiMesh("mesh" + prep.LowResSuffix)
		assert.NoError(t, err)
	}
}
