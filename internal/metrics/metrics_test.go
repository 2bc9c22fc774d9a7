package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Observe(OpSignin, OutcomeSuccess, 20*time.Millisecond)
	m.Observe(OpSignin, OutcomeDenied, 10*time.Millisecond)
	m.Observe(OpSignin, OutcomeDenied, 10*time.Millisecond)
	m.Observe(OpLogout, OutcomeSuccess, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues(OpSignin, OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues(OpSignin, OutcomeDenied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues(OpLogout, OutcomeSuccess)))

	expected := `
# HELP authsvc_auth_operations_total Auth operations by outcome.
# TYPE authsvc_auth_operations_total counter
authsvc_auth_operations_total{operation="logout",outcome="success"} 1
authsvc_auth_operations_total{operation="signin",outcome="denied"} 2
authsvc_auth_operations_total{operation="signin",outcome="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "authsvc_auth_operations_total"))

	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestObserve_NilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.Observe(OpRefresh, OutcomeError, time.Second)
	})
}

func TestNew_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	assert.Panics(t, func() { New(reg) })
}
