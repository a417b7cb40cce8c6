package backend

import (
	"context"
	"errors"
	"github.com/GlintPay/gsni/config"
)

var ErrNotExist = errors.New("file does not exist")

type Backends []Backend

// Backend Read access to stored certificate files. Names are slash-separated and relative to the backend root.
type Backend interface {
	Ordering
	Init(ctxt context.Context, config config.ApplicationConfiguration) error
	ReadFile(ctxt context.Context, name string) ([]byte, error)
	IsFile(ctxt context.Context, name string) (bool, error)
	Close()
}

// Lister Backends that can enumerate their files
type Lister interface {
	List(ctxt context.Context, dir string) ([]string, error)
}

type Ordering interface {
	Order() int // lower is higher priority
}

// Named Backends report a human-readable location for logs and the admin API
type Named interface {
	Location() string
}
