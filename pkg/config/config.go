// Package config provides the configuration for porthole. A single Config is
// built in main and passed by reference into the components that need it;
// there is no package-level default instance.
package config

import "time"

// Config holds the runtime configuration for discovery and generation.
type Config struct {
	// KubeconfigPath is the explicit kubeconfig location. Empty means try
	// in-cluster config first, then the default kubeconfig locations.
	KubeconfigPath string

	// OutputDir is where generated artifacts are written.
	OutputDir string
	// ServiceJSONFile is the manifest filename inside OutputDir.
	ServiceJSONFile string
	// LocationsConfigFile is the nginx locations filename inside OutputDir.
	LocationsConfigFile string

	// SkipNamespaces are excluded from scanning, case-sensitive exact match.
	SkipNamespaces []string
	// IncludeHeadless includes services without a cluster IP in results.
	IncludeHeadless bool
	// FrontendPatterns are case-insensitive regex patterns matched against
	// service and port names to tag frontend candidates.
	FrontendPatterns []string

	// RefreshInterval is the watch-mode cycle interval.
	RefreshInterval time.Duration
	// APITimeout bounds every single call to the cluster API.
	APITimeout time.Duration

	// EnableHTTPCheck probes the root path of healthy services over HTTP.
	EnableHTTPCheck bool
	HTTPTimeout     time.Duration
	HTTPUserAgent   string

	// PortalTitle is carried into the manifest metadata for the portal page.
	PortalTitle string
}

const (
	// DefaultRefreshInterval is the default watch-mode cycle interval.
	DefaultRefreshInterval = 60 * time.Second
	// DefaultAPITimeout bounds individual cluster API calls.
	DefaultAPITimeout = 30 * time.Second
	// DefaultHTTPTimeout bounds individual service HTTP probes.
	DefaultHTTPTimeout = 10 * time.Second
	// DefaultHTTPUserAgent identifies porthole's HTTP probes.
	DefaultHTTPUserAgent = "porthole-http-checker/1.0"
	// DefaultOutputDir is where artifacts land unless overridden.
	DefaultOutputDir = "./generated-output"
	// DefaultServiceJSONFile is the manifest filename.
	DefaultServiceJSONFile = "services.json"
	// DefaultLocationsConfigFile is the nginx locations filename.
	DefaultLocationsConfigFile = "locations.conf"
	// DefaultPortalTitle is the portal page title.
	DefaultPortalTitle = "Kubernetes Services Portal"

	// ServiceNameLabel is the standard label linking an EndpointSlice to its
	// service.
	ServiceNameLabel = "kubernetes.io/service-name"
)

// DefaultSkipNamespaces lists infrastructure namespaces that are skipped
// unless the configuration overrides the set.
func DefaultSkipNamespaces() []string {
	return []string{
		"kube-system",
		"kube-public",
		"kube-node-lease",
		"local-path-storage",
		"kubernetes-dashboard",
		"metallb-system",
		"cert-manager",
		"ingress-nginx",
		"monitoring",
		"logging",
		"istio-system",
		"linkerd",
		"calico-system",
		"tigera-operator",
		"rook-ceph",
		"velero",
		"argocd",
		"flux-system",
	}
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		OutputDir:           DefaultOutputDir,
		ServiceJSONFile:     DefaultServiceJSONFile,
		LocationsConfigFile: DefaultLocationsConfigFile,
		SkipNamespaces:      DefaultSkipNamespaces(),
		IncludeHeadless:     false,
		RefreshInterval:     DefaultRefreshInterval,
		APITimeout:          DefaultAPITimeout,
		EnableHTTPCheck:     true,
		HTTPTimeout:         DefaultHTTPTimeout,
		HTTPUserAgent:       DefaultHTTPUserAgent,
		PortalTitle:         DefaultPortalTitle,
	}
}
