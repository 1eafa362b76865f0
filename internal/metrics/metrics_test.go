package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.FriendshipActions.WithLabelValues("APPROVED", "outgoing").Inc()
	m.DuplicateMessages.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FriendshipActions.WithLabelValues("APPROVED", "outgoing")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "socialsync_duplicate_messages_total 1")
	assert.Contains(t, string(body), `socialsync_friendship_actions_total{action="APPROVED",direction="outgoing"} 1`)
}

func TestSetSessionState(t *testing.T) {
	m := New()
	states := []string{"BOOTING", "CONNECTING", "READY"}

	m.SetSessionState("CONNECTING", states)
	m.SetSessionState("READY", states)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionState.WithLabelValues("BOOTING")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionState.WithLabelValues("CONNECTING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionState.WithLabelValues("READY")))
}
