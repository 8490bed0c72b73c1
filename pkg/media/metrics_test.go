package media

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, 12345)
	require.NotNil(t, m)

	m.PacketsSent.Inc()
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestUint32ToLabel(t *testing.T) {
	assert.Equal(t, "00000000", uint32ToLabel(0))
	assert.Equal(t, "000000ff", uint32ToLabel(255))
}
