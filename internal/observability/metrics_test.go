package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-alerts/internal/chain"
)

func TestMetricsRecording(t *testing.T) {
	m := NewMetrics("test")

	m.RecordInvocation(OutcomeProcessed)
	m.RecordInvocation(OutcomeProcessed)
	m.RecordInvocation(OutcomeUnsupported)
	m.RecordCandidates(chain.Optimism, 2)
	m.RecordHeartbeat(200)
	m.NotificationSent("balance")
	m.NotificationFailed("heartbeat")
	m.ObserveRPC(chain.Arbitrum, "balanceOf", 20*time.Millisecond, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Invocations.WithLabelValues(OutcomeProcessed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invocations.WithLabelValues(OutcomeUnsupported)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Candidates.WithLabelValues("10")))
	assert.Equal(t, 200.0, testutil.ToFloat64(m.HeartbeatCount))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsSent.WithLabelValues("balance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsFailed.WithLabelValues("heartbeat")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCCallErrors.WithLabelValues("42161", "balanceOf")))
}

func TestMetricsIndependentRegistries(t *testing.T) {
	a := NewMetrics("")
	b := NewMetrics("")
	a.RecordInvocation(OutcomeSkipped)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Invocations.WithLabelValues(OutcomeSkipped)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Invocations.WithLabelValues(OutcomeSkipped)))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.RecordInvocation(OutcomeFailed)
	m.RecordHeartbeat(1)
	m.NotificationSent("balance")
	m.ObserveRPC(chain.Mainnet, "eth_getBalance", time.Second, nil)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics("test")
	m.RecordInvocation(OutcomeProcessed)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `test_engine_invocations_total{outcome="processed"} 1`)
}
