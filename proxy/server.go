// Package proxy serves HTTP on SNI listeners and forwards requests to an upstream.
package proxy

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/GlintPay/gsni/certmap"
	"github.com/GlintPay/gsni/config"
	"github.com/GlintPay/gsni/snimap"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	opts
	Name string

	upstream *httputil.ReverseProxy
	hosts    map[string]*httputil.ReverseProxy
}

// New Proxies to cfg.Upstream, or to the cfg.Hosts entry matching the TLS server name
func New(name string, cfg config.Proxy, options ...Opt) (*Server, error) {
	s := &Server{Name: name, hosts: make(map[string]*httputil.ReverseProxy)}
	for _, optionFunc := range options {
		optionFunc(&s.opts)
	}

	if cfg.Upstream != "" {
		p, err := newReverseProxy(cfg.Upstream)
		if err != nil {
			return nil, err
		}
		s.upstream = p
	}

	for hostname, upstream := range cfg.Hosts {
		host, err := certmap.Normalize(hostname)
		if err != nil {
			return nil, fmt.Errorf("proxy hosts: %w", err)
		}
		p, err := newReverseProxy(upstream)
		if err != nil {
			return nil, err
		}
		s.hosts[host] = p
	}

	if s.upstream == nil && len(s.hosts) == 0 {
		return nil, errors.New("proxy: no upstream configured")
	}
	return s, nil
}

func newReverseProxy(upstream string) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("upstream %q: %w", upstream, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" || target.Host == "" {
		return nil, fmt.Errorf("upstream %q: must be an absolute http(s) URL", upstream)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			r.SetXForwarded()
			r.Out.Host = r.In.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Error().Err(err).Str("upstream", upstream).Msg("Proxy error")
			w.WriteHeader(http.StatusBadGateway)
		},
	}, nil
}

func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	if s.RequestLogger != nil {
		router.Use(s.RequestLogger)
	}
	router.Handle("/*", http.HandlerFunc(s.forward))
	return router
}

func (s *Server) forward(w http.ResponseWriter, r *http.Request) {
	if p := s.upstreamFor(r); p != nil {
		p.ServeHTTP(w, r)
		return
	}
	http.Error(w, "no upstream for "+r.Host, http.StatusBadGateway)
}

func (s *Server) upstreamFor(r *http.Request) *httputil.ReverseProxy {
	name := r.Host
	if r.TLS != nil && r.TLS.ServerName != "" {
		name = r.TLS.ServerName
	} else if h, _, err := net.SplitHostPort(name); err == nil {
		name = h
	}

	if host, err := certmap.Normalize(name); err == nil {
		if p, ok := s.hosts[host]; ok {
			return p
		}
	}
	return s.upstream
}

// Serve blocks until ctx is cancelled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		TLSNextProto: map[string]func(*http.Server, *tls.Conn, http.Handler){
			// challenge connections carry no HTTP
			snimap.ACMETLS1Protocol: func(_ *http.Server, conn *tls.Conn, _ http.Handler) {
				log.Debug().Str("serverName", conn.ConnectionState().ServerName).Msg("Closing acme-tls/1 connection")
				_ = conn.Close()
			},
		},
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().Msgf("Proxying %s", s.Name)
		errs <- srv.Serve(listener)
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("%s: %w", s.Name, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info().Msgf("Shutting down %s", s.Name)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s: %w", s.Name, err)
	}
	return nil
}
