// Package snimap chooses a server certificate for each TLS handshake from the client's server name.
package snimap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/GlintPay/gsni/certmap"
	"github.com/GlintPay/gsni/metrics"
	gotel "github.com/GlintPay/gsni/otel"
	"github.com/rs/zerolog/log"
)

// ACMETLS1Protocol the ALPN protocol of the ACME tls-alpn-01 challenge (RFC 8737)
const ACMETLS1Protocol = "acme-tls/1"

const (
	outcomeSelected = "selected"
	outcomeAcme     = "acme"
	outcomeFallback = "fallback"
	outcomeMissing  = "missing"
	outcomeInvalid  = "invalid"
	outcomeError    = "error"
)

type SNIMap struct {
	opts
	Mapping     certmap.Map
	AcmeMapping certmap.Map // optional
}

func New(mapping certmap.Map, acmeMapping certmap.Map, options ...Opt) *SNIMap {
	m := &SNIMap{Mapping: mapping, AcmeMapping: acmeMapping}
	for _, optionFunc := range options {
		optionFunc(&m.opts)
	}
	if m.metrics == nil {
		m.metrics = metrics.Noop()
	}
	return m
}

// TLSConfig Returns a copy of base that picks its certificate per handshake.
//
// Everything else in base, ALPN protocols included, carries over to the per-handshake config,
// so protocol negotiation is unaffected by which certificate is chosen. ACME challenge
// handshakes are the exception: they negotiate only `acme-tls/1`.
func (m *SNIMap) TLSConfig(base *tls.Config) *tls.Config {
	if base == nil {
		base = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	template := base.Clone()
	template.GetConfigForClient = nil
	template.GetCertificate = nil

	cfg := template.Clone()
	cfg.GetConfigForClient = func(hello *tls.ClientHelloInfo) (*tls.Config, error) {
		return m.ConfigForClient(hello.Context(), template, hello)
	}
	return cfg
}

// ConfigForClient the config a given ClientHello is answered with
func (m *SNIMap) ConfigForClient(ctx context.Context, template *tls.Config, hello *tls.ClientHelloInfo) (*tls.Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if m.lookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.lookupTimeout)
		defer cancel()
	}

	ctx, end := gotel.StartSpan(ctx, m.enableTrace, "select-certificate")
	defer end()

	if m.AcmeMapping != nil && offers(hello.SupportedProtos, ACMETLS1Protocol) {
		cert, err := m.AcmeMapping.Certificate(ctx, hello.ServerName)
		if err != nil {
			m.count(failureOutcome(err))
			return nil, fmt.Errorf("acme challenge for %q: %w", hello.ServerName, err)
		}

		m.count(outcomeAcme)
		log.Info().Str("serverName", hello.ServerName).Msg("Answering ACME tls-alpn-01 challenge")

		cfg := template.Clone()
		cfg.Certificates = []tls.Certificate{*cert}
		cfg.NextProtos = []string{ACMETLS1Protocol}
		return cfg, nil
	}

	outcome := outcomeSelected
	cert, err := m.Mapping.Certificate(ctx, hello.ServerName)
	if err != nil && m.defaultFallback && isMiss(err) {
		log.Debug().Err(err).Str("serverName", hello.ServerName).Msg("Falling back to DEFAULT certificate")
		outcome = outcomeFallback
		cert, err = m.Mapping.Certificate(ctx, certmap.DefaultHostname)
	}
	if err != nil {
		m.count(failureOutcome(err))
		return nil, fmt.Errorf("certificate for %q: %w", hello.ServerName, err)
	}

	m.count(outcome)

	cfg := template.Clone()
	cfg.Certificates = []tls.Certificate{*cert}
	return cfg, nil
}

// Check For readiness: fails only if the DEFAULT certificate exists but cannot be loaded
func (m *SNIMap) Check(ctx context.Context) error {
	_, err := m.Mapping.Certificate(ctx, certmap.DefaultHostname)
	if err == nil || errors.Is(err, certmap.ErrNoCertificate) {
		return nil
	}
	return err
}

func (m *SNIMap) count(outcome string) {
	m.metrics.Handshakes.WithLabelValues(outcome).Inc()
}

func isMiss(err error) bool {
	return errors.Is(err, certmap.ErrNoCertificate) || errors.Is(err, certmap.ErrInvalidHostname)
}

func failureOutcome(err error) string {
	switch {
	case errors.Is(err, certmap.ErrInvalidHostname):
		return outcomeInvalid
	case errors.Is(err, certmap.ErrNoCertificate):
		return outcomeMissing
	}
	log.Error().Err(err).Msg("Certificate selection failed")
	return outcomeError
}

func offers(protos []string, want string) bool {
	for _, each := range protos {
		if each == want {
			return true
		}
	}
	return false
}
