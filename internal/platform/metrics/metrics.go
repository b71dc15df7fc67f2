// Package metrics holds the prometheus collectors for dispatches and
// workflows. A nil *Collectors is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "otme"

type Collectors struct {
	workflows  *prometheus.CounterVec
	dispatches *prometheus.CounterVec
	retries    *prometheus.CounterVec
	resyncs    prometheus.Counter
	latency    *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg when it is not
// nil.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		workflows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_outcomes_total",
			Help:      "Workflow results by workflow, outcome and deciding tier.",
		}, []string{"workflow", "outcome", "tier"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_attempts_total",
			Help:      "Requests submitted to a notary by operation and transport result.",
		}, []string{"operation", "result"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_retries_total",
			Help:      "Resubmissions scheduled by the orchestrator.",
		}, []string{"operation", "reason"}),
		resyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_number_resyncs_total",
			Help:      "Request number resynchronizations.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Round trip time of a single submission.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"operation"}),
	}
	if reg != nil {
		for _, col := range []prometheus.Collector{c.workflows, c.dispatches, c.retries, c.resyncs, c.latency} {
			if err := reg.Register(col); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func (c *Collectors) ObserveWorkflow(workflow, outcome, tier string) {
	if c == nil {
		return
	}
	if tier == "" {
		tier = "none"
	}
	c.workflows.WithLabelValues(workflow, outcome, tier).Inc()
}

// ObserveDispatch records one submission; result is "ok" or a transport
// error kind.
func (c *Collectors) ObserveDispatch(operation, result string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.dispatches.WithLabelValues(operation, result).Inc()
	c.latency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (c *Collectors) ObserveRetry(operation, reason string) {
	if c == nil {
		return
	}
	c.retries.WithLabelValues(operation, reason).Inc()
}

func (c *Collectors) ObserveResync() {
	if c == nil {
		return
	}
	c.resyncs.Inc()
}
