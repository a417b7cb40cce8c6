package endpoint

import (
	"crypto/tls"
	"path/filepath"
	"strings"

	"github.com/GlintPay/gsni/backend/file"
	"github.com/GlintPay/gsni/backend/git"
	"github.com/GlintPay/gsni/certmap"
	"github.com/GlintPay/gsni/config"
	"github.com/GlintPay/gsni/filetypes"
	"github.com/GlintPay/gsni/snimap"
	"k8s.io/client-go/kubernetes"
)

// Environment what SNI endpoints may draw certificates from
type Environment struct {
	Decrypter  filetypes.Decrypter  // applied to files read by txsni/acmesni
	Files      *file.Backend        // root for relative txsni/acmesni directories, if configured
	Git        *git.Backend         // gitsni, if configured
	Kubernetes kubernetes.Interface // k8ssni, if configured
	K8s        config.K8sConfig

	BaseTLS    *tls.Config
	SNIOptions []snimap.Opt

	// WrapMap decorates every map an endpoint creates, e.g. with caching and metrics
	WrapMap func(name string, m certmap.Map) certmap.Map
}

func (env *Environment) wrap(name string, m certmap.Map) certmap.Map {
	if m == nil || env.WrapMap == nil {
		return m
	}
	return env.WrapMap(name, m)
}

func (env *Environment) directory(dir string) *file.Backend {
	if env.Files != nil && !filepath.IsAbs(dir) && !strings.HasPrefix(dir, "~") {
		return env.Files.Sub(dir)
	}
	return file.New(dir, env.Decrypter)
}
