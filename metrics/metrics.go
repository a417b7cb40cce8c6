package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collectors shared by certificate maps and the SNI selector
type Metrics struct {
	Lookups           *prometheus.CounterVec
	LookupDuration    *prometheus.HistogramVec
	Handshakes        *prometheus.CounterVec
	CertificateExpiry *prometheus.GaugeVec
}

type MetricOpts struct {
	MetricNamePrefix string
	Registerer       prometheus.Registerer // nil means the default registry
}

func NewMetrics(opts MetricOpts) *Metrics {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.MetricNamePrefix,
			Name:      "certificate_lookups_total",
			Help:      "Certificate lookups by map and outcome (hit, miss, error)",
		}, []string{"map", "outcome"}),

		LookupDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.MetricNamePrefix,
			Name:      "certificate_lookup_seconds",
			Help:      "Time taken to load a certificate from storage",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"map"}),

		Handshakes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.MetricNamePrefix,
			Name:      "handshakes_total",
			Help:      "TLS ClientHellos by certificate selection outcome",
		}, []string{"outcome"}),

		CertificateExpiry: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: opts.MetricNamePrefix,
			Name:      "certificate_not_after_seconds",
			Help:      "Expiry of the most recently served certificate, as a Unix timestamp",
		}, []string{"map", "hostname"}),
	}
}

// Noop Metrics registered nowhere, for callers that don't care
func Noop() *Metrics {
	return NewMetrics(MetricOpts{Registerer: prometheus.NewRegistry()})
}
