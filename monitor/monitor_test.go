package monitor

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_Counters(t *testing.T) {
	m := NewMonitor("test")

	m.IncConnectedSessions()
	m.IncConnectedSessions()
	m.DecConnectedSessions()
	m.SetActiveRooms(3)
	m.IncRoundsStarted()
	m.IncRoundsResolved("EVADER_SIDE", "timeout")
	m.IncRoundsResolved("EVADER_SIDE", "timeout")
	m.IncMessagesReceived("arrest")
	m.ObserveMessageLatency(5 * time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.ConnectedSessions))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.metrics.ActiveRooms))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.RoundsStarted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.metrics.RoundsResolved.WithLabelValues("EVADER_SIDE", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.MessagesReceived.WithLabelValues("arrest")))
}

func TestMonitor_IndependentRegistries(t *testing.T) {
	first := NewMonitor("test")
	second := NewMonitor("test")

	first.IncRoundsAborted()

	assert.Equal(t, 1.0, testutil.ToFloat64(first.metrics.RoundsAborted))
	assert.Equal(t, 0.0, testutil.ToFloat64(second.metrics.RoundsAborted))

	families, err := second.Gatherer().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
