package api

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"time"

	"github.com/GlintPay/gsni/certmap"
)

// Listener the certificate maps behind one SNI listener
type Listener struct {
	Name    string
	Mapping certmap.Map
	Acme    certmap.Map // optional
}

type CertificateDescription struct {
	Listener    string    `json:"listener"`
	Hostname    string    `json:"hostname"`
	Subject     string    `json:"subject"`
	Issuer      string    `json:"issuer"`
	DNSNames    []string  `json:"dnsNames,omitempty"`
	NotBefore   time.Time `json:"notBefore"`
	NotAfter    time.Time `json:"notAfter"`
	Serial      string    `json:"serial"`
	ChainLength int       `json:"chainLength"`
}

func describe(listener string, hostname string, cert *tls.Certificate) (CertificateDescription, error) {
	if len(cert.Certificate) == 0 {
		return CertificateDescription{}, errors.New("certificate has no leaf")
	}

	leaf := cert.Leaf
	if leaf == nil {
		var err error
		if leaf, err = x509.ParseCertificate(cert.Certificate[0]); err != nil {
			return CertificateDescription{}, err
		}
	}

	return CertificateDescription{
		Listener:    listener,
		Hostname:    hostname,
		Subject:     leaf.Subject.String(),
		Issuer:      leaf.Issuer.String(),
		DNSNames:    leaf.DNSNames,
		NotBefore:   leaf.NotBefore.UTC(),
		NotAfter:    leaf.NotAfter.UTC(),
		Serial:      leaf.SerialNumber.Text(16),
		ChainLength: len(cert.Certificate) - 1,
	}, nil
}
