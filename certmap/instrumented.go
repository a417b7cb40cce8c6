package certmap

import (
	"context"
	"crypto/tls"
	"errors"
	"time"

	"github.com/GlintPay/gsni/metrics"
	gotel "github.com/GlintPay/gsni/otel"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Instrumented counts lookups by outcome and records served expiry
type Instrumented struct {
	Name        string
	Map         Map
	Metrics     *metrics.Metrics
	EnableTrace bool
}

func (m Instrumented) Certificate(ctx context.Context, hostname string) (*tls.Certificate, error) {
	ctx, end := gotel.StartSpan(ctx, m.EnableTrace, "certificate-lookup")
	defer end()

	start := time.Now()
	cert, err := m.Map.Certificate(ctx, hostname)
	m.Metrics.LookupDuration.WithLabelValues(m.Name).Observe(time.Since(start).Seconds())

	outcome := "hit"
	switch {
	case errors.Is(err, ErrNoCertificate), errors.Is(err, ErrInvalidHostname):
		outcome = "miss"
	case err != nil:
		outcome = "error"
		log.Error().Err(err).Str("map", m.Name).Str("hostname", hostname).Msg("Certificate lookup failed")
	}
	m.Metrics.Lookups.WithLabelValues(m.Name, outcome).Inc()

	if m.EnableTrace {
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.String("gsni.map", m.Name),
			attribute.String("gsni.hostname", hostname),
			attribute.String("gsni.outcome", outcome),
		)
	}

	if cert != nil && cert.Leaf != nil {
		host, _ := Normalize(hostname)
		m.Metrics.CertificateExpiry.WithLabelValues(m.Name, host).Set(float64(cert.Leaf.NotAfter.Unix()))
	}

	return cert, err
}

func (m Instrumented) Hostnames(ctx context.Context) ([]string, error) {
	if lister, ok := m.Map.(Lister); ok {
		return lister.Hostnames(ctx)
	}
	return nil, nil
}
