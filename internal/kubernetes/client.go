// Package kubernetes talks to the control plane that runs workload components.
// Manifests go through the dynamic client; namespaces, pods and logs through
// the typed clientset.
package kubernetes

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	oerrors "github.com/envctl/envctl/internal/errors"
)

// ClientOptions configures Kubernetes client creation.
type ClientOptions struct {
	// Kubeconfig is the path to the kubeconfig file.
	// Precedence: this field > ENVCTL_KUBECONFIG env > KUBECONFIG env > ~/.kube/config
	Kubeconfig string

	// Context is the Kubernetes context to use.
	// If empty, uses the current-context from kubeconfig.
	Context string

	// APIWarnings is how API server warnings are logged: warn, debug or
	// suppress. Empty means warn.
	APIWarnings string
}

// Client wraps Kubernetes API clients.
type Client struct {
	// Dynamic is used for component manifests.
	Dynamic dynamic.Interface

	// Clientset is used for namespaces, pods, logs and services.
	Clientset kubernetes.Interface

	// RestConfig is the underlying REST configuration. Nil for fake clients.
	RestConfig *rest.Config
}

// NewClient creates a Kubernetes client with the given options.
func NewClient(opts ClientOptions) (*Client, error) {
	restConfig, err := buildRestConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("building kubernetes config: %w",
			oerrors.Wrap(oerrors.ErrConnectivity, err.Error()))
	}

	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("creating dynamic client: %w",
			oerrors.Wrap(oerrors.ErrConnectivity, err.Error()))
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("creating clientset: %w",
			oerrors.Wrap(oerrors.ErrConnectivity, err.Error()))
	}

	return &Client{
		Dynamic:    dynamicClient,
		Clientset:  clientset,
		RestConfig: restConfig,
	}, nil
}

// buildRestConfig loads the kubeconfig resolved by resolveKubeconfig.
func buildRestConfig(opts ClientOptions) (*rest.Config, error) {
	loadingRules := &clientcmd.ClientConfigLoadingRules{
		ExplicitPath: resolveKubeconfig(opts.Kubeconfig),
	}

	overrides := &clientcmd.ConfigOverrides{}
	if opts.Context != "" {
		overrides.CurrentContext = opts.Context
	}

	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
	if err != nil {
		return nil, err
	}
	restConfig.WarningHandler = &warningHandler{level: opts.APIWarnings}
	return restConfig, nil
}

// resolveKubeconfig resolves kubeconfig path with precedence:
// flag > ENVCTL_KUBECONFIG > KUBECONFIG > ~/.kube/config
func resolveKubeconfig(flagValue string) string {
	var path string

	switch {
	case flagValue != "":
		path = flagValue
	case os.Getenv("ENVCTL_KUBECONFIG") != "":
		path = os.Getenv("ENVCTL_KUBECONFIG")
	case os.Getenv("KUBECONFIG") != "":
		path = os.Getenv("KUBECONFIG")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, ".kube", "config")
	}

	return expandTilde(path)
}

// expandTilde expands a leading ~ or ~/ to the user's home directory.
// ~username patterns are returned unchanged.
func expandTilde(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}
	if len(path) > 1 && path[1] == '/' {
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
