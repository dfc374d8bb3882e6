package transport

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK            = "ok"
	outcomeRejected      = "rejected"
	outcomeTransient     = "transient"
	outcomeIndeterminate = "indeterminate"
)

type metrics struct {
	requests *prometheus.CounterVec
	retries  *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newMetrics() *metrics {
	return &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hlclient",
			Name:      "requests_total",
			Help:      "Dispatched requests by endpoint and final outcome",
		}, []string{"endpoint", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hlclient",
			Name:      "retries_total",
			Help:      "Retried attempts by endpoint",
		}, []string{"endpoint"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hlclient",
			Name:      "request_duration_seconds",
			Help:      "Wall time of a dispatch including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

func (m *metrics) register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.requests, m.retries, m.latency} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
