package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GlintPay/gsni/backend"
	"github.com/GlintPay/gsni/backend/file"
	"github.com/GlintPay/gsni/certmap"
	"github.com/GlintPay/gsni/config"
	"github.com/GlintPay/gsni/internal/test"
	"github.com/GlintPay/gsni/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  endpoints:
    - txsni:/etc/gsni/certs:tcp:443
    - acmesni:/var/lib/dehydrated:tcp:8443
  defaultFallback: true
admin:
  port: 9090
proxy:
  upstream: http://127.0.0.1:8080
  hosts:
    api.example.com: http://127.0.0.1:8081
cache:
  ttlSeconds: 30
k8s:
  enabled: false
  defaultNamespace: edge
`), 0600))

	var appConfig config.ApplicationConfiguration
	readConfig(path, &appConfig)

	assert.Equal(t, []string{"txsni:/etc/gsni/certs:tcp:443", "acmesni:/var/lib/dehydrated:tcp:8443"}, appConfig.Server.Endpoints)
	assert.True(t, appConfig.Server.DefaultFallback)
	assert.Equal(t, 9090, appConfig.Admin.Port)
	assert.Equal(t, "http://127.0.0.1:8081", appConfig.Proxy.Hosts["api.example.com"])
	assert.Equal(t, 30, appConfig.Cache.TTLSeconds)
	assert.Equal(t, "edge", appConfig.K8s.DefaultNamespace)
}

func TestSampleConfig(t *testing.T) {
	var appConfig config.ApplicationConfiguration
	readConfig(filepath.Join("..", "..", "application.yml"), &appConfig)

	assert.NotEmpty(t, appConfig.Server.Endpoints)
	assert.True(t, strings.HasPrefix(appConfig.Git.PrivateKey, "-----BEGIN "), "privateKey holds key content")
	assert.Equal(t, "~/.ssh/known_hosts", appConfig.Git.KnownHostsFile)
	assert.True(t, appConfig.Git.CloneOnStart)
}

func TestWiring(t *testing.T) {
	root := t.TempDir()
	test.WriteFile(t, root, "certs/a.example.com.pem", test.NewLeaf(t, "a.example.com", nil).Pile())
	test.WriteFile(t, root, "certs/DEFAULT.pem", test.NewLeaf(t, "fallback", nil).Pile())

	appConfig := config.ApplicationConfiguration{
		Server:     config.Server{Endpoints: []string{"txsni:certs:tcp:0:interface=127.0.0.1"}, DefaultFallback: true},
		File:       config.FileConfig{Path: root},
		Cache:      config.Cache{TTLSeconds: 60},
		Prometheus: config.Prometheus{Path: "/metrics"},
	}

	fileBackend := &file.Backend{}
	require.NoError(t, fileBackend.Init(context.Background(), appConfig))

	m := metrics.NewMetrics(metrics.MetricOpts{MetricNamePrefix: "wiring", Registerer: prometheus.NewRegistry()})
	environment, err := setupEnvironment(appConfig, backend.Backends{fileBackend}, m)
	require.NoError(t, err)

	endpoints, err := parseEndpoints(context.Background(), appConfig, environment)
	require.NoError(t, err)
	require.Len(t, endpoints, 1)
	assert.Equal(t, filepath.Join(root, "certs"), endpoints[0].Name)

	_, isInstrumented := endpoints[0].SNI.Mapping.(certmap.Instrumented)
	assert.True(t, isInstrumented)

	router := setupRouter(appConfig, endpoints, func(next http.Handler) http.Handler { return next })
	setupHealthCheck(router, endpoints)

	for path, want := range map[string]string{
		"/certificates":               `["DEFAULT","a.example.com"]`,
		"/certificates/a.example.com": `"subject":"CN=a.example.com"`,
		"/readiness":                  `{}`,
		"/liveness":                   `{}`,
	} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Contains(t, rr.Body.String(), want, path)
	}

	// the certificate route and the readiness check of DEFAULT
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Lookups.WithLabelValues(filepath.Join(root, "certs"), "hit")))
}

func TestParseEndpointsRejects(t *testing.T) {
	tests := []struct {
		name      string
		endpoints []string
		errText   string
	}{
		{name: "none", errText: "no server endpoints"},
		{name: "plain tcp", endpoints: []string{"tcp:443"}, errText: "does not terminate TLS"},
		{name: "unknown", endpoints: []string{"quic:443"}, errText: "unknown endpoint type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appConfig := config.ApplicationConfiguration{Server: config.Server{Endpoints: tt.endpoints}}
			_, err := parseEndpoints(context.Background(), appConfig, nil)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.errText), err.Error())
		})
	}
}

func TestSetupTracingNeedsEndpoint(t *testing.T) {
	_, err := setupTracing(context.Background(), config.ApplicationConfiguration{Tracing: config.Tracing{Enabled: true}})
	assert.Error(t, err)

	shutdown, err := setupTracing(context.Background(), config.ApplicationConfiguration{})
	assert.NoError(t, err)
	shutdown()
}
