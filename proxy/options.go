package proxy

import "net/http"

type opts struct {
	RequestLogger func(http.Handler) http.Handler
}

type Opt func(*opts)

func WithRequestLogger(mw func(http.Handler) http.Handler) Opt {
	return func(o *opts) {
		o.RequestLogger = mw
	}
}
