package InputParameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/meshtvprep/prep"
)

var runFile = `
Title: "Strip test"
Prefix: strip
OutDir: /tmp/out
Vars: [pressure]
LowRes: true
LowResSize: [8, 8, 4]
OnionPeel: false
Workers: 3
Inputs:
  - strip_0000.root.mtv
  - strip_0001.root.mtv
`

func TestPrepParameters(t *testing.T) {
	var pp PrepParameters
	require.NoError(t, pp.Parse([]byte(runFile)))
	{ // Parsed values
		assert.Equal(t, "Strip test", pp.Title)
		assert.Equal(t, []int{8, 8, 4}, pp.LowResSize)
		require.NotNil(t, pp.OnionPeel)
		assert.False(t, *pp.OnionPeel)
		assert.Nil(t, pp.MedRes)
		assert.Len(t, pp.Inputs, 2)
	}
	{ // Only what the file sets is applied
		opts := prep.DefaultOptions()
		require.NoError(t, pp.Apply(&opts))
		assert.Equal(t, "strip", opts.Prefix)
		assert.Equal(t, "/tmp/out", opts.OutDir)
		assert.Equal(t, []string{"pressure"}, opts.Vars)
		assert.True(t, opts.LowRes)
		assert.Equal(t, [3]int{8, 8, 4}, opts.LowResSize)
		assert.False(t, opts.OnionPeel)
		assert.True(t, opts.IntervalTree)
		assert.Equal(t, [3]int{64, 64, 64}, opts.MedResSize)
		assert.Equal(t, 3, opts.Workers)
		assert.Equal(t, []string{"strip_0000.root.mtv", "strip_0001.root.mtv"}, opts.Inputs)
	}
	{ // Resolutions need three axes
		bad := PrepParameters{MedResSize: []int{4, 4}}
		opts := prep.DefaultOptions()
		assert.Error(t, bad.Apply(&opts))
	}
	{ // Malformed file
		assert.Error(t, pp.Parse([]byte("Workers: [1")))
	}
}
