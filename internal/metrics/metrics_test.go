package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CallOutcomes.WithLabelValues("generate", "generated").Inc()
	m.CallsActive.Set(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallOutcomes.WithLabelValues("generate", "generated")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CallsActive))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "intervyu_call_outcomes_total")
	assert.Contains(t, names, "intervyu_calls_active")
}

func TestNewTwiceOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = Nop()
		_ = Nop()
	})
}
