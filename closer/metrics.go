// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package closer

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "dsrworker"

// Collector is a prometheus.Collector that collects metrics about
// ticket close-out.
type Collector struct {
	ticketsProcessed     *prometheus.CounterVec
	subtasksProcessed    *prometheus.CounterVec
	verificationPolls    prometheus.Counter
	notificationFailures prometheus.Counter
	resolveDuration      prometheus.Histogram
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		ticketsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "tickets_processed_total",
				Help:      "The number of DSR tickets processed, by result.",
			}, []string{"result"},
		),
		subtasksProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "subtasks_processed_total",
				Help:      "The number of subtasks driven to a terminal state, by state.",
			}, []string{"state"},
		),
		verificationPolls: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "verification_polls_total",
				Help:      "The number of removal verification polls issued.",
			},
		),
		notificationFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "notification_failures_total",
				Help:      "The number of failure notifications that could not be delivered.",
			},
		),
		resolveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "subtask_resolve_seconds",
				Help:      "The time taken to drive one subtask to a terminal state.",
				Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.ticketsProcessed.Describe(ch)
	c.subtasksProcessed.Describe(ch)
	c.verificationPolls.Describe(ch)
	c.notificationFailures.Describe(ch)
	c.resolveDuration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.ticketsProcessed.Collect(ch)
	c.subtasksProcessed.Collect(ch)
	c.verificationPolls.Collect(ch)
	c.notificationFailures.Collect(ch)
	c.resolveDuration.Collect(ch)
}
