// Package certmap provides hostname -> certificate lookups over the storage layouts ACME clients write.
package certmap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
)

// DefaultHostname the key used when a client sends no server name
const DefaultHostname = "DEFAULT"

var (
	ErrNoCertificate   = errors.New("no certificate")
	ErrInvalidHostname = errors.New("invalid hostname")
)

// Map Certificate returns ErrNoCertificate (wrapped) when the hostname is unknown
type Map interface {
	Certificate(ctx context.Context, hostname string) (*tls.Certificate, error)
}

// Lister Maps able to enumerate the hostnames they hold
type Lister interface {
	Hostnames(ctx context.Context) ([]string, error)
}

// Storage the part of backend.Backend layouts need
type Storage interface {
	ReadFile(ctx context.Context, name string) ([]byte, error)
	IsFile(ctx context.Context, name string) (bool, error)
}

// Func adapts a function to Map
type Func func(ctx context.Context, hostname string) (*tls.Certificate, error)

func (f Func) Certificate(ctx context.Context, hostname string) (*tls.Certificate, error) {
	return f(ctx, hostname)
}

// Normalize Lowercases a server name and rejects anything that could escape a directory.
// An empty name becomes DefaultHostname.
func Normalize(hostname string) (string, error) {
	if hostname == "" || hostname == DefaultHostname {
		return DefaultHostname, nil
	}

	name := strings.ToLower(strings.TrimSuffix(hostname, "."))
	if name == "" || len(name) > 253 {
		return "", fmt.Errorf("%w: %q", ErrInvalidHostname, hostname)
	}

	for _, label := range strings.Split(name, ".") {
		if label == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidHostname, hostname)
		}
		for _, r := range label {
			if !validHostnameRune(r) {
				return "", fmt.Errorf("%w: %q", ErrInvalidHostname, hostname)
			}
		}
	}
	return name, nil
}

// letters, digits, hyphen, underscore and `*` for wildcard files
func validHostnameRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == '*'
}

func notFound(kind string, hostname string) error {
	return fmt.Errorf("no %s for %s: %w", kind, hostname, ErrNoCertificate)
}
