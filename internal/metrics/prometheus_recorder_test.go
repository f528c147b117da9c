package metrics

import (
	"os"
	"path/filepath"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gathered returns the value of each sample keyed by metric name and,
// for labelled metrics, name{value}.
func gathered(t *testing.T, reg *prom.Registry) map[string]float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)

	out := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "{" + lp.GetValue() + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			}
		}
	}
	return out
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.IncInvalidTransition()
	pr.IncInvalidTransition()
	pr.IncCommit(true)
	pr.IncCommit(false)
	pr.IncCommit(false)
	pr.SetBrightness(200)
	pr.SetEnabled(true)

	got := gathered(t, reg)
	assert.Equal(t, 2.0, got["lightmixer_encoder_invalid_transitions_total"])
	assert.Equal(t, 1.0, got["lightmixer_persist_commits_total{success}"])
	assert.Equal(t, 2.0, got["lightmixer_persist_commits_total{failed}"])
	assert.Equal(t, 200.0, got["lightmixer_brightness"])
	assert.Equal(t, 1.0, got["lightmixer_enabled"])
}

func TestPrometheusRecorder_WriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.SetPosition(42)

	path := filepath.Join(t.TempDir(), "lightmixer.prom")
	require.NoError(t, pr.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "lightmixer_encoder_position 42")
}

func TestNilPrometheusRecorder(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.IncButtonPress()
		pr.SetEnabled(false)
	})
}
