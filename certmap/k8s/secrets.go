package k8s

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"sort"
	"text/template"

	"github.com/GlintPay/gsni/certmap"
	"github.com/GlintPay/gsni/filetypes"
	"github.com/Masterminds/sprig"
	"github.com/rs/zerolog/log"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const (
	DefaultSecretNameTemplate = `{{ .Hostname | lower | replace "." "-" | replace "*" "wildcard" }}-tls`

	// HostnameAnnotation lets Hostnames() report the hostname a secret serves
	HostnameAnnotation = "gsni.glintpay.com/hostname"
)

// SecretMap serves `kubernetes.io/tls` Secrets from one namespace
type SecretMap struct {
	client    kubernetes.Interface
	namespace string
	nameTmpl  *template.Template
}

type templateData struct {
	Hostname  string
	Namespace string
}

func NewSecretMap(client kubernetes.Interface, namespace string, nameTemplate string) (*SecretMap, error) {
	if namespace == "" {
		return nil, fmt.Errorf("no namespace for kubernetes secrets")
	}
	if nameTemplate == "" {
		nameTemplate = DefaultSecretNameTemplate
	}

	tmpl, err := template.New("secretName").Funcs(sprig.TxtFuncMap()).Parse(nameTemplate)
	if err != nil {
		return nil, fmt.Errorf("secret name template: %w", err)
	}

	return &SecretMap{client: client, namespace: namespace, nameTmpl: tmpl}, nil
}

// SecretName the Secret consulted for hostname
func (m *SecretMap) SecretName(hostname string) (string, error) {
	var buf bytes.Buffer
	if err := m.nameTmpl.Execute(&buf, templateData{Hostname: hostname, Namespace: m.namespace}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (m *SecretMap) Certificate(ctx context.Context, hostname string) (*tls.Certificate, error) {
	host, err := certmap.Normalize(hostname)
	if err != nil {
		return nil, err
	}

	name, err := m.SecretName(host)
	if err != nil {
		return nil, err
	}

	log.Debug().Msgf("Fetching K8s secret [%s/%s] for %s...", m.namespace, name, host)
	secret, err := m.client.CoreV1().Secrets(m.namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, fmt.Errorf("no secret %s/%s for %s: %w", m.namespace, name, host, certmap.ErrNoCertificate)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get secret %s/%s: %w", m.namespace, name, err)
	}

	key, hasKey := secretValue(secret, corev1.TLSPrivateKeyKey)
	chain, hasChain := secretValue(secret, corev1.TLSCertKey)
	if !hasKey || !hasChain {
		return nil, fmt.Errorf("secret %s/%s lacks %s or %s: %w", m.namespace, name, corev1.TLSPrivateKeyKey, corev1.TLSCertKey, certmap.ErrNoCertificate)
	}

	cert, err := filetypes.ParseKeyAndChain(key, chain)
	if err != nil {
		return nil, fmt.Errorf("secret %s/%s: %w", m.namespace, name, err)
	}
	return cert, nil
}

// Hostnames reported by TLS secrets carrying HostnameAnnotation.
// A hostname is only listed when its templated secret name is the annotated secret, so every
// listed name resolves through Certificate.
func (m *SecretMap) Hostnames(ctx context.Context) ([]string, error) {
	secrets, err := m.client.CoreV1().Secrets(m.namespace).List(ctx, metav1.ListOptions{
		FieldSelector: "type=" + string(corev1.SecretTypeTLS),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets in %s: %w", m.namespace, err)
	}

	var hosts []string
	for _, each := range secrets.Items {
		if each.Type != corev1.SecretTypeTLS {
			continue
		}
		annotated, ok := each.Annotations[HostnameAnnotation]
		if !ok || annotated == "" {
			continue
		}

		host, err := certmap.Normalize(annotated)
		if err != nil {
			log.Warn().Msgf("Secret %s/%s: %v", m.namespace, each.Name, err)
			continue
		}

		name, err := m.SecretName(host)
		if err != nil {
			return nil, err
		}
		if name != each.Name {
			log.Warn().Msgf("Secret %s/%s is annotated %s, which is looked up as %s; not listing it", m.namespace, each.Name, host, name)
			continue
		}
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	return hosts, nil
}

func secretValue(secret *corev1.Secret, key string) ([]byte, bool) {
	// Try Data first (base64 decoded by client-go)
	if data, ok := secret.Data[key]; ok && len(data) > 0 {
		return data, true
	}
	// Fall back to StringData
	if data, ok := secret.StringData[key]; ok && data != "" {
		return []byte(data), true
	}
	return nil, false
}
