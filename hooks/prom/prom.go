// Package prom exports ledgercache pass metrics to Prometheus.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/unkn0wn-root/ledgercache"
)

type Hooks struct {
	refreshed     *prometheus.CounterVec
	passDuration  *prometheus.HistogramVec
	batchDuration *prometheus.HistogramVec
	passFailures  *prometheus.CounterVec
	phase         *prometheus.GaugeVec
	retries       prometheus.Counter
	malformed     prometheus.Counter
}

var _ ledgercache.Hooks = (*Hooks)(nil)

// New registers the collectors with reg. A nil reg creates unregistered collectors.
func New(reg prometheus.Registerer) *Hooks {
	return &Hooks{
		refreshed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ledgercache_refreshed_keys_total",
			Help: "Total number of cached keys rewritten or removed by sync passes.",
		}, []string{"dataset"}),
		passDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledgercache_pass_duration_seconds",
			Help:    "Duration of successful sync passes.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 9),
		}, []string{"dataset"}),
		batchDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledgercache_batch_duration_seconds",
			Help:    "Fetch and write time of one remote batch.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"dataset"}),
		passFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ledgercache_pass_failures_total",
			Help: "Total number of sync passes that ended with an error.",
		}, []string{"dataset"}),
		phase: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledgercache_pass_phase",
			Help: "Current phase of the sync pass (0 idle .. 5 done).",
		}, []string{"dataset"}),
		retries: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ledgercache_fetch_retries_total",
			Help: "Total number of retried remote value downloads.",
		}),
		malformed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ledgercache_malformed_references_total",
			Help: "Total number of wrapped references that did not split into two parts.",
		}),
	}
}

func (h *Hooks) PhaseChanged(dataset string, p ledgercache.Phase) {
	h.phase.WithLabelValues(dataset).Set(float64(p))
}

func (h *Hooks) Progress(dataset string, _ ledgercache.Progress, took time.Duration) {
	h.batchDuration.WithLabelValues(dataset).Observe(took.Seconds())
}

func (h *Hooks) FetchRetry(string, int, error) { h.retries.Inc() }

func (h *Hooks) MalformedReference(string, int) { h.malformed.Inc() }

func (h *Hooks) PassCompleted(dataset string, _, refreshed int, took time.Duration) {
	h.refreshed.WithLabelValues(dataset).Add(float64(refreshed))
	h.passDuration.WithLabelValues(dataset).Observe(took.Seconds())
}

func (h *Hooks) PassFailed(dataset string, _ error) {
	h.passFailures.WithLabelValues(dataset).Inc()
}
