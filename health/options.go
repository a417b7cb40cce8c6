package health

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/heptiolabs/healthcheck"
)

type opts struct {
	ChiMux          *chi.Mux
	ReadinessChecks map[string]healthcheck.Check
}

type Opt func(*opts)

func WithChiMux(mux *chi.Mux) Opt {
	return func(o *opts) {
		o.ChiMux = mux
	}
}

// WithReadinessCheck adds a named readiness check, bounded by timeout
func WithReadinessCheck(name string, timeout time.Duration, check func(ctx context.Context) error) Opt {
	return func(o *opts) {
		if o.ReadinessChecks == nil {
			o.ReadinessChecks = make(map[string]healthcheck.Check)
		}
		o.ReadinessChecks[name] = healthcheck.Timeout(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			return check(ctx)
		}, timeout)
	}
}
