package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	m := New()
	require.NotNil(t, m.Registry)

	m.ObserveTool(true, 1.5)
	m.ObserveTool(false, 0.2)
	m.ObserveLayer(true, false)
	m.ObserveLayer(false, true)
	m.ObserveRollbackAction(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolsTotal.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LayersTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LayersTotal.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RollbackActionsTotal.WithLabelValues("failure")))
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveTool(true, 1)
	m.ObserveLayer(false, false)
	m.ObserveRollbackAction(true)
}
