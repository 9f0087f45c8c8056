package generator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"k8s.io/klog/v2"

	"github.com/porthole-sh/porthole/pkg/config"
	"github.com/porthole-sh/porthole/pkg/discovery"
	"github.com/porthole-sh/porthole/pkg/model"
)

// Manifest is the machine-readable services.json document.
type Manifest struct {
	Services []Record     `json:"services"`
	Meta     ManifestMeta `json:"meta"`
}

// ManifestMeta summarizes the discovery cycle that produced the manifest.
type ManifestMeta struct {
	TotalServices     int      `json:"total_services"`
	HealthyServices   int      `json:"healthy_services"`
	UnhealthyServices int      `json:"unhealthy_services"`
	FrontendServices  int      `json:"frontend_services"`
	NamespacesScanned []string `json:"namespaces_scanned"`
	NamespacesSkipped []string `json:"namespaces_skipped"`
	PortalTitle       string   `json:"portal_title,omitempty"`
	DiscoveryTime     string   `json:"discovery_time"`
	GeneratedAt       string   `json:"generated_at"`
}

// ManifestGenerator writes the services.json manifest.
type ManifestGenerator struct {
	cfg        *config.Config
	classifier *discovery.Classifier
}

// NewManifestGenerator creates a manifest generator. The classifier supplies
// per-port frontend flags and may be nil.
func NewManifestGenerator(cfg *config.Config, classifier *discovery.Classifier) *ManifestGenerator {
	return &ManifestGenerator{cfg: cfg, classifier: classifier}
}

// Build assembles the manifest document without writing it.
func (g *ManifestGenerator) Build(result *model.DiscoveryResult) *Manifest {
	return &Manifest{
		Services: Flatten(result, g.classifier),
		Meta: ManifestMeta{
			TotalServices:     result.TotalServices,
			HealthyServices:   result.HealthyServices,
			UnhealthyServices: result.UnhealthyServices,
			FrontendServices:  result.FrontendServices,
			NamespacesScanned: result.NamespacesScanned,
			NamespacesSkipped: result.NamespacesSkipped,
			PortalTitle:       g.cfg.PortalTitle,
			DiscoveryTime:     result.DiscoveryTime.UTC().Format(time.RFC3339),
			GeneratedAt:       time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// Generate writes the manifest into the output directory and returns the
// file path. An empty discovery result produces a valid, empty manifest.
func (g *ManifestGenerator) Generate(result *model.DiscoveryResult) (string, error) {
	if err := os.MkdirAll(g.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(g.Build(result), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}

	path := filepath.Join(g.cfg.OutputDir, g.cfg.ServiceJSONFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	klog.Infof("Generated service manifest: %s", path)
	return path, nil
}
