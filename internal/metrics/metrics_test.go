package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestActiveConnectionsGauge(t *testing.T) {
	ActiveConnections.Inc()
	defer ActiveConnections.Dec()
	assert.Equal(t, float64(1), testutil.ToFloat64(ActiveConnections))
}

func TestActionsDispatchedCounter(t *testing.T) {
	before := testutil.ToFloat64(ActionsDispatched.WithLabelValues("Heartbeat", "reply"))
	ActionsDispatched.WithLabelValues("Heartbeat", "reply").Inc()
	after := testutil.ToFloat64(ActionsDispatched.WithLabelValues("Heartbeat", "reply"))
	assert.Equal(t, before+1, after)
}
