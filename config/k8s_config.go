package config

type K8sConfig struct {
	Enabled            bool   // Must be explicitly enabled to use K8s secrets
	Kubeconfig         string // Path to kubeconfig file (empty = in-cluster auth)
	DefaultNamespace   string // Namespace used when an endpoint doesn't name one
	SecretNameTemplate string `json:"secretNameTemplate"` // text/template + sprig, receives .Hostname
}
