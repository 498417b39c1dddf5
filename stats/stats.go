// Package stats exposes the network send statistics as prometheus metrics
// for callers embedding the writer in a long-running process.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/promkit/promwrite/types"
)

// PrometheusStats translates NetworkStats updates into registered
// prometheus metrics. Update is intended to be passed as the stats
// callback when constructing a network.Client.
type PrometheusStats struct {
	register prometheus.Registerer

	NetworkSeriesSent   prometheus.Counter
	NetworkFailures     prometheus.Counter
	NetworkRetries      prometheus.Counter
	NetworkRetries429   prometheus.Counter
	NetworkRetries5XX   prometheus.Counter
	NetworkErrors       prometheus.Counter
	NetworkSentDuration prometheus.Histogram
	SentBytesTotal      prometheus.Counter
}

func NewStats(namespace, subsystem string, registry prometheus.Registerer) *PrometheusStats {
	s := &PrometheusStats{
		register: registry,
		NetworkSeriesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "series_sent_total",
			Help:      "Total number of series successfully written to the endpoint",
		}),
		NetworkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "series_failed_total",
			Help:      "Total number of series dropped due to unrecoverable responses",
		}),
		NetworkRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "series_retried_total",
		}),
		NetworkRetries429: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "series_retried_429_total",
		}),
		NetworkRetries5XX: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "series_retried_5xx_total",
		}),
		NetworkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "network_errors_total",
		}),
		NetworkSentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "send_duration_seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		SentBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sent_bytes_total",
		}),
	}
	registry.MustRegister(
		s.NetworkSeriesSent,
		s.NetworkFailures,
		s.NetworkRetries,
		s.NetworkRetries429,
		s.NetworkRetries5XX,
		s.NetworkErrors,
		s.NetworkSentDuration,
		s.SentBytesTotal,
	)
	return s
}

// Update feeds one batch of network stats into the registered metrics.
func (s *PrometheusStats) Update(ns types.NetworkStats) {
	if ns.SeriesSent > 0 {
		s.NetworkSeriesSent.Add(float64(ns.SeriesSent))
	}
	if ns.FailedSeries > 0 {
		s.NetworkFailures.Add(float64(ns.FailedSeries))
	}
	if ns.RetriedSeries > 0 {
		s.NetworkRetries.Add(float64(ns.RetriedSeries))
	}
	if ns.RetriedSeries429 > 0 {
		s.NetworkRetries429.Add(float64(ns.RetriedSeries429))
	}
	if ns.RetriedSeries5XX > 0 {
		s.NetworkRetries5XX.Add(float64(ns.RetriedSeries5XX))
	}
	if ns.NetworkErrors > 0 {
		s.NetworkErrors.Add(float64(ns.NetworkErrors))
	}
	if ns.SeriesBytes > 0 {
		s.SentBytesTotal.Add(float64(ns.SeriesBytes))
	}
	if ns.SendDuration > 0 {
		s.NetworkSentDuration.Observe(ns.SendDuration.Seconds())
	}
}

// Unregister removes the metrics from the registry.
func (s *PrometheusStats) Unregister() {
	s.register.Unregister(s.NetworkSeriesSent)
	s.register.Unregister(s.NetworkFailures)
	s.register.Unregister(s.NetworkRetries)
	s.register.Unregister(s.NetworkRetries429)
	s.register.Unregister(s.NetworkRetries5XX)
	s.register.Unregister(s.NetworkErrors)
	s.register.Unregister(s.NetworkSentDuration)
	s.register.Unregister(s.SentBytesTotal)
}
