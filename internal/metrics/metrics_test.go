package metrics_test

import (
	"testing"

	"github.com/ImShyMike/hcb/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterUnregister(t *testing.T) {
	require.Nil(t, metrics.Register())
	assert.NotNil(t, metrics.Register(), "registering twice must fail")

	assert.True(t, metrics.Unregister())
	assert.False(t, metrics.Unregister(), "nothing is registered anymore")

	require.Nil(t, metrics.Register())
	assert.True(t, metrics.Unregister())
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(metrics.Anomalies.WithLabelValues("event_unmapped"))
	metrics.Anomalies.WithLabelValues("event_unmapped").Inc()

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.Anomalies.WithLabelValues("event_unmapped")))
}
