package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/GlintPay/gsni/api"
	"github.com/GlintPay/gsni/backend"
	"github.com/GlintPay/gsni/backend/setup"
	"github.com/GlintPay/gsni/certmap"
	"github.com/GlintPay/gsni/certmap/k8s"
	"github.com/GlintPay/gsni/config"
	"github.com/GlintPay/gsni/endpoint"
	"github.com/GlintPay/gsni/filetypes"
	"github.com/GlintPay/gsni/health"
	"github.com/GlintPay/gsni/logging"
	"github.com/GlintPay/gsni/metrics"
	"github.com/GlintPay/gsni/proxy"
	"github.com/GlintPay/gsni/snimap"
	"github.com/GlintPay/gsni/sops"
	"github.com/GlintPay/gsni/utils"
	"github.com/caarlos0/env/v6"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/yaml"
)

const serviceName = "gsni"

const readinessTimeout = 5 * time.Second

var envConfig = config.Configuration{}

func main() {
	if err := env.Parse(&envConfig); err != nil {
		log.Fatal().Msgf("Configuration loading failed: %+v", err)
	}

	logging.Setup(os.Stdout, envConfig.LogLevel)

	appConfig := config.ApplicationConfiguration{}
	readConfig(envConfig.ApplicationConfigFileYmlPath, &appConfig)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	traceShutdown, e := setupTracing(ctx, appConfig)
	if e != nil {
		log.Fatal().Stack().Err(e).Msg("Trace setup failed")
	}
	defer traceShutdown()

	m := metrics.NewMetrics(metrics.MetricOpts{MetricNamePrefix: serviceName})

	////////////////////////////////////////////

	backends, e := setup.Init(ctx, appConfig)
	if e != nil {
		log.Fatal().Stack().Err(e).Msg("Backend init failed")
	}
	defer closeAll(backends)

	environment, e := setupEnvironment(appConfig, backends, m)
	if e != nil {
		log.Fatal().Stack().Err(e).Msg("Environment setup failed")
	}

	endpoints, e := parseEndpoints(ctx, appConfig, environment)
	if e != nil {
		log.Fatal().Stack().Err(e).Msg("Endpoint setup failed")
	}

	requestLogger := logging.RequestLogger(os.Stdout, serviceName, envConfig.LogLevel)

	router := setupRouter(appConfig, endpoints, requestLogger)
	setupHealthCheck(router, endpoints)

	////////////////////////////////////////////

	g, gctx := errgroup.WithContext(ctx)

	for _, each := range endpoints {
		listener, err := each.Listen(gctx)
		if err != nil {
			log.Fatal().Stack().Err(err).Msgf("Cannot listen on %s", each)
		}

		srv, err := proxy.New(each.String(), appConfig.Proxy, proxy.WithRequestLogger(requestLogger))
		if err != nil {
			log.Fatal().Stack().Err(err).Msg("Proxy setup failed")
		}

		g.Go(func() error {
			return srv.Serve(gctx, listener)
		})
	}

	g.Go(func() error {
		return serveAdmin(gctx, appConfig, router)
	})

	err := g.Wait()
	if err != nil {
		log.Fatal().Stack().Err(err).Msg("startup failed")
	}
	log.Info().Msg("Stopped")
}

func readConfig(filePath string, config *config.ApplicationConfiguration) {
	yamlFile, err := os.ReadFile(filePath)
	if err == nil {
		log.Debug().Msgf("Loading YAML config from %s", utils.FriendlyFileName(filePath))
		err = yaml.Unmarshal(yamlFile, config)
		if err != nil {
			log.Fatal().Stack().Err(err).Msg("Unmarshal")
		}
	} else {
		log.Printf("No config file found: %s", utils.FriendlyFileName(filePath))
	}
}

func closeAll(backends backend.Backends) {
	for _, each := range backends {
		each.Close()
	}
}

// setupEnvironment everything endpoint strings can draw on: backends, kubernetes, and the wrapping of each map
func setupEnvironment(appConfig config.ApplicationConfiguration, backends backend.Backends, m *metrics.Metrics) (*endpoint.Environment, error) {
	var decrypter filetypes.Decrypter = filetypes.NoDecrypter{}
	if appConfig.Sops.Enabled {
		decrypter = sops.Decrypter{}
	}

	environment := &endpoint.Environment{
		Decrypter: decrypter,
		Files:     setup.File(backends),
		Git:       setup.Git(backends),
		K8s:       appConfig.K8s,
		BaseTLS: &tls.Config{
			MinVersion: tls.VersionTLS12,
			NextProtos: []string{"http/1.1"},
		},
		SNIOptions: sniOptions(appConfig, m),
	}

	var cachesLock sync.Mutex
	var caches []*certmap.Cached
	environment.WrapMap = func(name string, mapping certmap.Map) certmap.Map {
		if appConfig.Cache.TTLSeconds > 0 {
			cached := certmap.NewCached(mapping, time.Duration(appConfig.Cache.TTLSeconds)*time.Second)
			cachesLock.Lock()
			caches = append(caches, cached)
			cachesLock.Unlock()
			mapping = cached
		}
		return certmap.Instrumented{Name: name, Map: mapping, Metrics: m, EnableTrace: appConfig.Tracing.Enabled}
	}

	// new commits may replace certificates still cached from the previous one
	if environment.Git != nil {
		environment.Git.OnChange(func(version string) {
			cachesLock.Lock()
			defer cachesLock.Unlock()

			log.Info().Msgf("Flushing %d certificate caches for commit %s", len(caches), version)
			for _, each := range caches {
				each.Flush()
			}
		})
	}

	if appConfig.K8s.Enabled {
		client, err := k8s.NewClientset(appConfig.K8s)
		if err != nil {
			return nil, err
		}
		environment.Kubernetes = client
	}

	return environment, nil
}

func sniOptions(appConfig config.ApplicationConfiguration, m *metrics.Metrics) []snimap.Opt {
	options := []snimap.Opt{snimap.WithMetrics(m), snimap.WithTracing(appConfig.Tracing.Enabled)}
	if appConfig.Server.DefaultFallback {
		options = append(options, snimap.WithDefaultFallback())
	}
	if appConfig.Server.LookupTimeoutMillis > 0 {
		options = append(options, snimap.WithLookupTimeout(time.Duration(appConfig.Server.LookupTimeoutMillis)*time.Millisecond))
	}
	return options
}

func parseEndpoints(ctx context.Context, appConfig config.ApplicationConfiguration, environment *endpoint.Environment) ([]*endpoint.TLSEndpoint, error) {
	if len(appConfig.Server.Endpoints) == 0 {
		return nil, errors.New("no server endpoints configured")
	}

	var endpoints []*endpoint.TLSEndpoint
	for _, description := range appConfig.Server.Endpoints {
		e, err := endpoint.Parse(ctx, description, environment)
		if err != nil {
			return nil, err
		}

		tlsEndpoint, ok := e.(*endpoint.TLSEndpoint)
		if !ok {
			return nil, fmt.Errorf("endpoint %q does not terminate TLS", description)
		}
		endpoints = append(endpoints, tlsEndpoint)
	}
	return endpoints, nil
}

var emptyShutdown = func() {}

func setupTracing(ctx context.Context, config config.ApplicationConfiguration) (func(), error) {
	if !config.Tracing.Enabled {
		return emptyShutdown, nil
	}

	if config.Tracing.Endpoint == "" {
		return emptyShutdown, fmt.Errorf("missing tracing endpoint")
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
		),
	)
	if err != nil {
		return emptyShutdown, fmt.Errorf("failed to create resource: %w", err)
	}

	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithEndpoint(config.Tracing.Endpoint),
	)
	if err != nil {
		return emptyShutdown, fmt.Errorf("failed to create trace exporter %v", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(config.Tracing.SamplerFraction)),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	log.Info().Msgf("OpenTelemetry export is enabled, to: %s", config.Tracing.Endpoint)

	return func() {
		// ctx is already cancelled by the time we get here
		if err = tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error().Stack().Err(err).Msg("failed to shutdown TracerProvider")
		}
	}, nil
}

func setupRouter(config config.ApplicationConfiguration, endpoints []*endpoint.TLSEndpoint, requestLogger func(http.Handler) http.Handler) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.StripSlashes)
	router.Use(requestLogger)

	listeners := make([]api.Listener, 0, len(endpoints))
	for _, each := range endpoints {
		listeners = append(listeners, api.Listener{Name: each.Name, Mapping: each.SNI.Mapping, Acme: each.SNI.AcmeMapping})
	}

	routing := api.Routing{
		ServerName:   serviceName,
		ParentRouter: router,

		Listeners: listeners,
		AppConfig: config,
	}

	router.Route("/", func(r chi.Router) {
		if e := routing.SetupFunctionalRoutes(r); e != nil {
			log.Fatal().Stack().Err(e).Msg("route setup failed")
		}
	})

	if len(config.Prometheus.Path) > 0 {
		log.Info().Msgf("Registering metrics endpoint at: %s", config.Prometheus.Path)
		router.Handle(config.Prometheus.Path, promhttp.Handler())
	}

	return router
}

func setupHealthCheck(router *chi.Mux, endpoints []*endpoint.TLSEndpoint) {
	opts := []health.Opt{health.WithChiMux(router)}
	for _, each := range endpoints {
		opts = append(opts, health.WithReadinessCheck(each.String(), readinessTimeout, each.SNI.Check))
	}

	healthChk := health.New(opts...)
	healthChk.StartListening()
}

func serveAdmin(ctx context.Context, appConfig config.ApplicationConfiguration, router http.Handler) error {
	if appConfig.Admin.Port == 0 {
		appConfig.Admin.Port = 8080
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", appConfig.Admin.Port),
		Handler:           router,
		ReadHeaderTimeout: 30 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Msgf("Admin listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin server: %w", err)
	}
	return nil
}
