package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New()
	m.Visited("initial")
	m.Visited("initial")
	m.Visited("normal")
	m.Written("var", 3)
	m.StateDone()
	m.Stage("wrapup")()
	{ // Counters
		assert.Equal(t, 2., testutil.ToFloat64(m.DomainsVisited.WithLabelValues("initial")))
		assert.Equal(t, 1., testutil.ToFloat64(m.DomainsVisited.WithLabelValues("normal")))
		assert.Equal(t, 3., testutil.ToFloat64(m.ObjectsWritten.WithLabelValues("var")))
		assert.Equal(t, 1., testutil.ToFloat64(m.StatesCompleted))
		assert.Equal(t, 1, testutil.CollectAndCount(m.StageSeconds))
	}
	{ // Text file export
		path := filepath.Join(t.TempDir(), "meshtvprep.prom")
		require.NoError(t, m.WriteTextfile(path))
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		text := string(raw)
		assert.True(t, strings.Contains(text, `meshtvprep_domains_visited_total{pass="initial"} 2`))
		assert.True(t, strings.Contains(text, "meshtvprep_states_completed_total 1"))
		assert.True(t, strings.Contains(text, `meshtvprep_stage_seconds_count{stage="wrapup"} 1`))
	}
	{ // Registries are private
		other := New()
		assert.Equal(t, 0., testutil.ToFloat64(other.StatesCompleted))
	}
}
