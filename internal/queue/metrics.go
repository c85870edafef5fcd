// metrics.go: Prometheus instrumentation for the delivery engine
//
// Copyright (c) 2025 AGILira
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package queue

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	submitted prometheus.Counter
	delivered prometheus.Counter
	retried   prometheus.Counter
	dropped   prometheus.Counter
	cycles    *prometheus.CounterVec
	buffered  prometheus.Gauge
	duration  prometheus.Histogram
}

// NewMetrics builds the collectors and registers them on reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsicle_items_submitted_total",
			Help: "Total records accepted by Submit.",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsicle_items_delivered_total",
			Help: "Total records that left the buffer in a successful cycle.",
		}),
		retried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsicle_items_retried_total",
			Help: "Total records re-enqueued after a failed cycle.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsicle_items_dropped_total",
			Help: "Total records discarded after exhausting their retries.",
		}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logsicle_cycles_total",
			Help: "Completed batching cycles by outcome.",
		}, []string{"outcome"}),
		buffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "logsicle_buffer_length",
			Help: "Records currently waiting in the buffer.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "logsicle_cycle_duration_seconds",
			Help:    "Wall time of a batching cycle from pull to resolution.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.submitted, m.delivered, m.retried, m.dropped, m.cycles, m.buffered, m.duration,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) observeSubmit(bufferLen int) {
	if m == nil {
		return
	}
	m.submitted.Inc()
	m.buffered.Set(float64(bufferLen))
}

func (m *Metrics) observeCycle(delivered, retried, dropped, bufferLen int, failed bool, seconds float64) {
	if m == nil {
		return
	}
	outcome := "success"
	if failed {
		outcome = "failure"
	}
	m.cycles.WithLabelValues(outcome).Inc()
	m.delivered.Add(float64(delivered))
	m.retried.Add(float64(retried))
	m.dropped.Add(float64(dropped))
	m.buffered.Set(float64(bufferLen))
	m.duration.Observe(seconds)
}

func (m *Metrics) observeBufferLen(bufferLen int) {
	if m == nil {
		return
	}
	m.buffered.Set(float64(bufferLen))
}
