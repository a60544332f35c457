// Package metrics exports exam session counters to Prometheus.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// Recorder counts session outcomes. It is an exam.Notifier.
type Recorder struct {
	started    *prometheus.CounterVec
	finished   *prometheus.CounterVec
	violations *prometheus.CounterVec
	failures   *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_sessions_started_total",
			Help: "Exam sessions that left the instructions screen",
		}, []string{"track"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_sessions_finished_total",
			Help: "Exam sessions that reached a terminal phase, by phase",
		}, []string{"track", "outcome"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_violations_total",
			Help: "Proctoring violations, by kind and escalation",
		}, []string{"track", "kind", "level"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_submission_failures_total",
			Help: "Attempt writes that failed",
		}, []string{"track"}),
	}
	reg.MustRegister(r.started, r.finished, r.violations, r.failures)
	return r
}

func (r *Recorder) Notify(n model.Notification) {
	track := string(n.Track)
	switch n.Kind {
	case model.NotifySessionStarted:
		r.started.WithLabelValues(track).Inc()
	case model.NotifyPhaseChanged:
		if n.Phase.Terminal() {
			r.finished.WithLabelValues(track, string(n.Phase)).Inc()
		}
	case model.NotifyViolationWarning, model.NotifyDisqualified:
		r.violations.WithLabelValues(track, string(n.Violation), string(n.Kind)).Inc()
	case model.NotifySubmissionFailed:
		r.failures.WithLabelValues(track).Inc()
	}
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
