package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicedesk/internal/application"
	"voicedesk/internal/domain"
)

var _ application.Metrics = (*Recorder)(nil)

func TestRecorder_SessionFinished(t *testing.T) {
	r := NewRecorderWithRegistry(prometheus.NewRegistry())

	r.SessionFinished(domain.ReasonCompleted, "")
	r.SessionFinished(domain.ReasonCompleted, "")
	r.SessionFinished(domain.ReasonFailed, domain.KindSynthesis)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.sessionsTotal.WithLabelValues("completed", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessionsTotal.WithLabelValues("failed", "synthesis")))
}

func TestRecorder_ObserveStage(t *testing.T) {
	r := NewRecorderWithRegistry(prometheus.NewRegistry())

	r.ObserveStage(domain.StateRecording, 2*time.Second)
	r.ObserveStage(domain.StateGenerating, 300*time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(r.stageDuration))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.SessionFinished(domain.ReasonNoSpeech, "")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `voicedesk_sessions_total{kind="none",outcome="no_speech"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
