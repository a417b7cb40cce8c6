package snimap

import (
	"time"

	"github.com/GlintPay/gsni/metrics"
)

type opts struct {
	defaultFallback bool
	lookupTimeout   time.Duration
	metrics         *metrics.Metrics
	enableTrace     bool
}

type Opt func(*opts)

// WithDefaultFallback serves the DEFAULT certificate to clients whose server name has none
func WithDefaultFallback() Opt {
	return func(o *opts) {
		o.defaultFallback = true
	}
}

// WithLookupTimeout bounds how long a handshake waits on certificate storage
func WithLookupTimeout(d time.Duration) Opt {
	return func(o *opts) {
		o.lookupTimeout = d
	}
}

func WithMetrics(m *metrics.Metrics) Opt {
	return func(o *opts) {
		o.metrics = m
	}
}

func WithTracing(enabled bool) Opt {
	return func(o *opts) {
		o.enableTrace = enabled
	}
}
