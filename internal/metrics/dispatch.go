package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Terminal states of a slash-command request.
const (
	OutcomeAuthRejected   = "auth_rejected"
	OutcomeInvalidCommand = "invalid_command"
	OutcomeDispatched     = "dispatched"
	OutcomeDispatchFailed = "dispatch_failed"
)

// Dispatch records dispatcher outcomes and GitHub call latency.
type Dispatch struct {
	outcomes       *prometheus.CounterVec
	githubDuration prometheus.Histogram
}

// NewDispatch registers the dispatcher collectors on reg.
func NewDispatch(reg prometheus.Registerer) *Dispatch {
	f := promauto.With(reg)
	return &Dispatch{
		outcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatcher_outcomes_total",
				Help: "Slash-command requests by terminal state",
			},
			[]string{"outcome"},
		),
		githubDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dispatcher_github_request_duration_seconds",
				Help:    "Duration of workflow-dispatch calls to GitHub",
				Buckets: []float64{.05, .1, .25, .5, 1, 1.5, 2, 2.5, 3, 5},
			},
		),
	}
}

// Outcome counts one request ending in the given terminal state.
// A nil receiver is a no-op so callers may run without metrics.
func (d *Dispatch) Outcome(outcome string) {
	if d == nil {
		return
	}
	d.outcomes.WithLabelValues(outcome).Inc()
}

// ObserveGitHub records how long a dispatch call took.
func (d *Dispatch) ObserveGitHub(elapsed time.Duration) {
	if d == nil {
		return
	}
	d.githubDuration.Observe(elapsed.Seconds())
}
