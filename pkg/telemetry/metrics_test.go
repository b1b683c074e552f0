package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetricsIsIdempotent(t *testing.T) {
	InitMetrics()
	InitMetrics()

	err := prometheus.DefaultRegisterer.Register(DevicesDiscovered)
	var already prometheus.AlreadyRegisteredError
	require.ErrorAs(t, err, &already)
}

func TestCollectorsRegisterOnFreshRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	for _, c := range Collectors() {
		require.NoError(t, reg.Register(c))
	}
}

func TestRemoteKeysCounter(t *testing.T) {
	before := testutil.ToFloat64(RemoteKeys.WithLabelValues("dropped"))
	RemoteKeys.WithLabelValues("dropped").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(RemoteKeys.WithLabelValues("dropped")))
}

func TestHTTPClientUsesTimeout(t *testing.T) {
	c := HTTPClient(3 * time.Second)
	assert.Equal(t, 3*time.Second, c.Timeout)
	assert.NotNil(t, c.Transport)
}
