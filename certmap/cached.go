package certmap

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cached keeps parsed certificates for a TTL. Misses are never cached, so a certificate
// dropped into storage is picked up on the next handshake.
type Cached struct {
	Map   Map
	cache *cache.Cache
}

func NewCached(m Map, ttl time.Duration) *Cached {
	return &Cached{
		Map:   m,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *Cached) Certificate(ctx context.Context, hostname string) (*tls.Certificate, error) {
	host, err := Normalize(hostname)
	if err != nil {
		return nil, err
	}

	if val, ok := c.cache.Get(host); ok {
		return val.(*tls.Certificate), nil
	}

	cert, err := c.Map.Certificate(ctx, host)
	if err != nil {
		return nil, err
	}

	c.cache.SetDefault(host, cert)
	return cert, nil
}

func (c *Cached) Hostnames(ctx context.Context) ([]string, error) {
	if lister, ok := c.Map.(Lister); ok {
		return lister.Hostnames(ctx)
	}
	return nil, nil
}

func (c *Cached) Flush() {
	c.cache.Flush()
}
