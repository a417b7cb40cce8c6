package test

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Issued A generated certificate together with its PEM encodings
type Issued struct {
	Cert    *x509.Certificate
	Key     crypto.Signer
	CertPEM []byte
	KeyPEM  []byte
}

// Pile key first, then leaf, then any chain, as dehydrated and certbot would concatenate them
func (i Issued) Pile(chain ...Issued) []byte {
	var buf bytes.Buffer
	buf.Write(i.KeyPEM)
	buf.Write(i.CertPEM)
	for _, each := range chain {
		buf.Write(each.CertPEM)
	}
	return buf.Bytes()
}

// FullChain leaf followed by chain, without the key
func (i Issued) FullChain(chain ...Issued) []byte {
	var buf bytes.Buffer
	buf.Write(i.CertPEM)
	for _, each := range chain {
		buf.Write(each.CertPEM)
	}
	return buf.Bytes()
}

// NewCA A self-signed ECDSA certificate authority
func NewCA(t testing.TB, name string) Issued {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := template(name)
	tmpl.IsCA = true
	tmpl.BasicConstraintsValid = true
	tmpl.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature

	return issue(t, tmpl, tmpl, key, key)
}

// NewLeaf An ECDSA server certificate for hostname, signed by issuer or self-signed if issuer is nil
func NewLeaf(t testing.TB, hostname string, issuer *Issued) Issued {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return newLeaf(t, hostname, issuer, key)
}

// NewRSALeaf As NewLeaf, with a PKCS#1 encoded RSA key
func NewRSALeaf(t testing.TB, hostname string) Issued {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return newLeaf(t, hostname, nil, key)
}

func newLeaf(t testing.TB, hostname string, issuer *Issued, key crypto.Signer) Issued {
	tmpl := template(hostname)
	tmpl.DNSNames = []string{hostname}
	tmpl.KeyUsage = x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment
	tmpl.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}

	if issuer == nil {
		return issue(t, tmpl, tmpl, key, key)
	}
	return issue(t, tmpl, issuer.Cert, key, issuer.Key)
}

func template(cn string) *x509.Certificate {
	serial, _ := rand.Int(rand.Reader, big.NewInt(1<<62))
	return &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
}

func issue(t testing.TB, tmpl, parent *x509.Certificate, key crypto.Signer, signer crypto.Signer) Issued {
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, key.Public(), signer)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	var keyBlock *pem.Block
	switch typed := key.(type) {
	case *rsa.PrivateKey:
		keyBlock = &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(typed)}
	case *ecdsa.PrivateKey:
		keyBytes, e := x509.MarshalECPrivateKey(typed)
		require.NoError(t, e)
		keyBlock = &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}
	default:
		t.Fatalf("unexpected key type %T", key)
	}

	return Issued{
		Cert:    cert,
		Key:     key,
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:  pem.EncodeToMemory(keyBlock),
	}
}

// PKCS8 Re-encode the key as an unencrypted PKCS#8 block
func (i Issued) PKCS8(t testing.TB) []byte {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(i.Key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}
