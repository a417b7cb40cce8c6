package k8s

import (
	"fmt"

	"github.com/GlintPay/gsni/config"
	"github.com/GlintPay/gsni/utils"
	"github.com/rs/zerolog/log"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// NewClientset uses cfg.Kubeconfig when set, otherwise the pod's service account
func NewClientset(cfg config.K8sConfig) (kubernetes.Interface, error) {
	restConfig, err := restConfigFor(cfg)
	if err != nil {
		return nil, err
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("kubernetes clientset: %w", err)
	}
	return clientset, nil
}

func restConfigFor(cfg config.K8sConfig) (*rest.Config, error) {
	if cfg.Kubeconfig == "" {
		log.Info().Msg("Reading TLS secrets with the in-cluster service account")
		restConfig, err := rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("in-cluster kubernetes config: %w", err)
		}
		return restConfig, nil
	}

	path := utils.ExpandUser(cfg.Kubeconfig)
	log.Info().Str("kubeconfig", utils.FriendlyFileName(path)).Msg("Reading TLS secrets with kubeconfig")
	restConfig, err := clientcmd.BuildConfigFromFlags("", path)
	if err != nil {
		return nil, fmt.Errorf("kubeconfig %s: %w", path, err)
	}
	return restConfig, nil
}
