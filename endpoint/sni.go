package endpoint

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"path"

	"github.com/GlintPay/gsni/certmap"
	"github.com/GlintPay/gsni/certmap/k8s"
	"github.com/GlintPay/gsni/snimap"
	"github.com/rs/zerolog/log"
)

// TLSEndpoint terminates TLS on connections accepted from the wrapped endpoint
type TLSEndpoint struct {
	Endpoint Endpoint
	SNI      *snimap.SNIMap
	Config   *tls.Config
	Name     string
}

func (e *TLSEndpoint) Listen(ctx context.Context) (net.Listener, error) {
	inner, err := e.Endpoint.Listen(ctx)
	if err != nil {
		return nil, err
	}
	log.Info().Msgf("Serving TLS with certificates from %s on %s", e.Name, e.Endpoint)
	return tls.NewListener(inner, e.Config), nil
}

func (e *TLSEndpoint) String() string {
	return e.Name + " on " + e.Endpoint.String()
}

// SNIDirectoryParser `txsni:PEMDIR:<endpoint>`: PEMDIR/<host>.pem, challenge certificates in PEMDIR/acme
type SNIDirectoryParser struct{}

func (SNIDirectoryParser) Prefix() string {
	return "txsni"
}

func (SNIDirectoryParser) Parse(ctx context.Context, reg *Registry, env *Environment, desc Description) (Endpoint, error) {
	if len(desc.Args) == 0 || desc.Args[0] == "" {
		return nil, errors.New("txsni endpoint: missing certificate directory")
	}
	pemdir := desc.Args[0]

	storage := env.directory(pemdir)
	mapping := certmap.HostDirectory{Storage: storage}
	acmeMapping := certmap.HostDirectory{Storage: storage.Sub("acme")}

	return newTLSEndpoint(ctx, reg, env, desc, storage.Location(), mapping, acmeMapping)
}

// AcmeSNIParser `acmesni:BASEDIR:<endpoint>`: dehydrated's BASEDIR/certs and BASEDIR/alpn-certs
type AcmeSNIParser struct{}

func (AcmeSNIParser) Prefix() string {
	return "acmesni"
}

func (AcmeSNIParser) Parse(ctx context.Context, reg *Registry, env *Environment, desc Description) (Endpoint, error) {
	if len(desc.Args) == 0 || desc.Args[0] == "" {
		return nil, errors.New("acmesni endpoint: missing base directory")
	}
	basedir := desc.Args[0]

	storage := env.directory(basedir)
	mapping := certmap.NewDehydrated(storage.Sub("certs"))
	acmeMapping := certmap.NewDehydratedAcme(storage.Sub("alpn-certs"))

	return newTLSEndpoint(ctx, reg, env, desc, storage.Location(), mapping, acmeMapping)
}

// GitSNIParser `gitsni:SUBDIR:<endpoint>`: as txsni, reading SUBDIR of the configured git repository
type GitSNIParser struct{}

func (GitSNIParser) Prefix() string {
	return "gitsni"
}

func (GitSNIParser) Parse(ctx context.Context, reg *Registry, env *Environment, desc Description) (Endpoint, error) {
	if env.Git == nil {
		return nil, errors.New("gitsni endpoint: git backend is not configured")
	}
	if len(desc.Args) == 0 {
		return nil, errors.New("gitsni endpoint: missing repository directory")
	}
	subdir := desc.Args[0]

	mapping := certmap.HostDirectory{Storage: certmap.Prefixed{Storage: env.Git, Dir: subdir}}
	acmeMapping := certmap.HostDirectory{Storage: certmap.Prefixed{Storage: env.Git, Dir: path.Join(subdir, "acme")}}

	return newTLSEndpoint(ctx, reg, env, desc, env.Git.Location()+"/"+subdir, mapping, acmeMapping)
}

// KubernetesSNIParser `k8ssni:NAMESPACE:<endpoint>`: kubernetes.io/tls secrets, no challenge certificates
type KubernetesSNIParser struct{}

func (KubernetesSNIParser) Prefix() string {
	return "k8ssni"
}

func (KubernetesSNIParser) Parse(ctx context.Context, reg *Registry, env *Environment, desc Description) (Endpoint, error) {
	if env.Kubernetes == nil {
		return nil, errors.New("k8ssni endpoint: kubernetes is not enabled")
	}
	if len(desc.Args) == 0 {
		return nil, errors.New("k8ssni endpoint: missing namespace")
	}

	namespace := desc.Args[0]
	if namespace == "" {
		namespace = env.K8s.DefaultNamespace
	}

	mapping, err := k8s.NewSecretMap(env.Kubernetes, namespace, env.K8s.SecretNameTemplate)
	if err != nil {
		return nil, fmt.Errorf("k8ssni endpoint: %w", err)
	}

	return newTLSEndpoint(ctx, reg, env, desc, "k8s:"+namespace, mapping, nil)
}

func newTLSEndpoint(ctx context.Context, reg *Registry, env *Environment, desc Description, name string, mapping certmap.Map, acmeMapping certmap.Map) (*TLSEndpoint, error) {
	sub, err := desc.Rest(1)
	if err != nil {
		return nil, err
	}

	inner, err := reg.Parse(ctx, sub, env)
	if err != nil {
		return nil, fmt.Errorf("%s endpoint: %w", desc.Prefix, err)
	}

	wrappedAcme := certmap.Map(nil)
	if acmeMapping != nil {
		wrappedAcme = env.wrap(name+"#acme", acmeMapping)
	}

	sni := snimap.New(env.wrap(name, mapping), wrappedAcme, env.SNIOptions...)

	return &TLSEndpoint{
		Endpoint: inner,
		SNI:      sni,
		Config:   sni.TLSConfig(env.BaseTLS),
		Name:     name,
	}, nil
}
