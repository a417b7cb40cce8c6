package certmap

import (
	"context"
	"path"

	"github.com/GlintPay/gsni/backend"
)

// Prefixed roots a Storage at a subdirectory
type Prefixed struct {
	Storage Storage
	Dir     string
}

func (p Prefixed) ReadFile(ctx context.Context, name string) ([]byte, error) {
	return p.Storage.ReadFile(ctx, path.Join(p.Dir, name))
}

func (p Prefixed) IsFile(ctx context.Context, name string) (bool, error) {
	return p.Storage.IsFile(ctx, path.Join(p.Dir, name))
}

func (p Prefixed) List(ctx context.Context, dir string) ([]string, error) {
	lister, ok := p.Storage.(backend.Lister)
	if !ok {
		return nil, nil
	}
	return lister.List(ctx, path.Join(p.Dir, dir))
}
