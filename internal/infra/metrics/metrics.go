// Package metrics exports session metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voicedesk/internal/domain"
)

const namespace = "voicedesk"

// Recorder implements application.Metrics on a Prometheus registry.
type Recorder struct {
	registry      *prometheus.Registry
	sessionsTotal *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// NewRecorder registers the session metrics and the Go runtime collectors on
// a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewRecorderWithRegistry(reg)
}

func NewRecorderWithRegistry(reg *prometheus.Registry) *Recorder {
	r := &Recorder{
		registry: reg,
		sessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Finished sessions by exit reason and error kind",
			},
			[]string{"outcome", "kind"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Time spent in each session stage in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
	}
	reg.MustRegister(r.sessionsTotal, r.stageDuration)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (r *Recorder) ObserveStage(stage domain.State, d time.Duration) {
	r.stageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

func (r *Recorder) SessionFinished(reason domain.Reason, kind domain.ErrorKind) {
	k := string(kind)
	if k == "" {
		k = "none"
	}
	r.sessionsTotal.WithLabelValues(string(reason), k).Inc()
}
