package filetypes

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

var (
	ErrNoPrivateKey          = errors.New("no private key in PEM data")
	ErrMultiplePrivateKeys   = errors.New("more than one private key in PEM data")
	ErrNoMatchingCertificate = errors.New("no certificate matches the private key")
)

// ParsePile Build a serving certificate from a pile of PEM blocks in any order.
//
// The pile must hold exactly one private key. The certificate whose public key matches it becomes
// the leaf; every other certificate is sent as chain, in the order it appeared.
// Blocks of any other type are skipped.
func ParsePile(data []byte) (*tls.Certificate, error) {
	var key crypto.Signer
	var certs []*x509.Certificate
	var ders [][]byte

	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}

		switch block.Type {
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse certificate: %w", err)
			}
			certs = append(certs, cert)
			ders = append(ders, block.Bytes)
		case "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY":
			if key != nil {
				return nil, ErrMultiplePrivateKeys
			}
			parsed, err := parsePrivateKey(block)
			if err != nil {
				return nil, err
			}
			key = parsed
		}
	}

	if key == nil {
		return nil, ErrNoPrivateKey
	}

	leafIdx := -1
	for i, cert := range certs {
		if publicKeyMatches(cert.PublicKey, key.Public()) {
			leafIdx = i
			break
		}
	}
	if leafIdx < 0 {
		return nil, ErrNoMatchingCertificate
	}

	chain := make([][]byte, 0, len(ders))
	chain = append(chain, ders[leafIdx])
	for i, der := range ders {
		if i != leafIdx {
			chain = append(chain, der)
		}
	}

	return &tls.Certificate{
		Certificate: chain,
		PrivateKey:  key,
		Leaf:        certs[leafIdx],
	}, nil
}

// ParseKeyAndChain Two-file layouts are parsed as one pile
func ParseKeyAndChain(key, chain []byte) (*tls.Certificate, error) {
	pile := make([]byte, 0, len(key)+len(chain)+1)
	pile = append(pile, key...)
	if len(key) > 0 && !bytes.HasSuffix(key, []byte("\n")) {
		pile = append(pile, '\n')
	}
	pile = append(pile, chain...)
	return ParsePile(pile)
}

func parsePrivateKey(block *pem.Block) (crypto.Signer, error) {
	var parsed any
	var err error

	switch block.Type {
	case "RSA PRIVATE KEY":
		parsed, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		parsed, err = x509.ParseECPrivateKey(block.Bytes)
	default:
		parsed, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", block.Type, err)
	}

	signer, ok := parsed.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T", parsed)
	}
	return signer, nil
}

func publicKeyMatches(certKey any, key crypto.PublicKey) bool {
	switch typed := certKey.(type) {
	case *rsa.PublicKey:
		return typed.Equal(key)
	case *ecdsa.PublicKey:
		return typed.Equal(key)
	case ed25519.PublicKey:
		return typed.Equal(key)
	}
	return false
}
