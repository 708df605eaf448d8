// Package metrics exports client activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rezonia/etims-go/pkg/etims"
)

// OutcomeOK labels requests that returned 2xx
const OutcomeOK = "ok"

// Observer implements etims.Observer on top of Prometheus collectors
type Observer struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
}

var _ etims.Observer = (*Observer)(nil)

// NewObserver creates the collectors and registers them with reg
func NewObserver(reg prometheus.Registerer) *Observer {
	o := &Observer{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "etims_client",
			Name:      "requests_total",
			Help:      "Requests dispatched to the TIaaS middleware, by outcome.",
		}, []string{"method", "path", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "etims_client",
			Name:      "request_duration_seconds",
			Help:      "Time from dispatch to classified outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "etims_client",
			Name:      "token_refreshes_total",
			Help:      "Client-credentials exchanges, by result.",
		}, []string{"result"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "etims_client",
			Name:      "token_refresh_duration_seconds",
			Help:      "Duration of client-credentials exchanges.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(o.requests, o.requestDuration, o.refreshes, o.refreshDuration)
	return o
}

// ObserveRequest counts the request under its error kind, or "ok"
func (o *Observer) ObserveRequest(e etims.RequestEvent) {
	outcome := OutcomeOK
	if e.Kind != "" {
		outcome = string(e.Kind)
	}
	o.requests.WithLabelValues(e.Method, e.Path, outcome).Inc()
	o.requestDuration.WithLabelValues(e.Method, e.Path).Observe(e.Duration.Seconds())
}

func (o *Observer) ObserveTokenRefresh(d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	o.refreshes.WithLabelValues(result).Inc()
	o.refreshDuration.Observe(d.Seconds())
}
