package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"

	"github.com/porthole-sh/porthole/pkg/config"
	"github.com/porthole-sh/porthole/pkg/model"
)

// Location is one nginx location block: a proxy path routed to a service's
// in-cluster DNS name.
type Location struct {
	Path       string
	ServiceDNS string
}

const locationsTemplate = `# Managed by porthole. Do not edit; regenerated every discovery cycle.
# Generated at {{ .GeneratedAt }} ({{ len .Locations }} locations)
{{ range .Locations }}
location {{ .Path }}/ {
    proxy_pass http://{{ .ServiceDNS }}/;
    proxy_set_header Host $host;
    proxy_set_header X-Real-IP $remote_addr;
    proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
    proxy_set_header X-Forwarded-Proto $scheme;
}
{{ end }}`

var (
	pathSanitizer      = regexp.MustCompile(`[^a-zA-Z0-9\-_/]`)
	underscoreCollapse = regexp.MustCompile(`_+`)
)

// NginxGenerator writes the reverse-proxy locations file.
type NginxGenerator struct {
	cfg  *config.Config
	tmpl *template.Template
}

// NewNginxGenerator creates an nginx locations generator.
func NewNginxGenerator(cfg *config.Config) *NginxGenerator {
	return &NginxGenerator{
		cfg:  cfg,
		tmpl: template.Must(template.New("locations").Parse(locationsTemplate)),
	}
}

// Locations builds the deduplicated location list for all services with at
// least one ready endpoint.
func (g *NginxGenerator) Locations(result *model.DiscoveryResult) []Location {
	var locations []Location
	seen := sets.New[string]()

	for _, svc := range result.SortedServices() {
		if !svc.HasReadyEndpoints() {
			klog.V(4).Infof("Skipping service without ready endpoints: %s", svc.DisplayName())
			continue
		}
		for _, port := range svc.Ports {
			key := fmt.Sprintf("%s_%s_%d", svc.Namespace, svc.Name, port.Port)
			if seen.Has(key) {
				continue
			}
			seen.Insert(key)

			locations = append(locations, Location{
				Path:       locationPath(svc, port),
				ServiceDNS: serviceDNS(svc, port),
			})
		}
	}
	return locations
}

// Generate renders the locations file and returns its path. An empty result
// renders a valid file with zero location blocks.
func (g *NginxGenerator) Generate(result *model.DiscoveryResult) (string, error) {
	if err := os.MkdirAll(g.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var buf strings.Builder
	err := g.tmpl.Execute(&buf, struct {
		GeneratedAt string
		Locations   []Location
	}{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Locations:   g.Locations(result),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render locations template: %w", err)
	}

	path := filepath.Join(g.cfg.OutputDir, g.cfg.LocationsConfigFile)
	if err := os.WriteFile(path, []byte(buf.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write locations config: %w", err)
	}

	klog.Infof("Generated nginx locations: %s", path)
	return path, nil
}

// Validate performs a cheap sanity check of a rendered config file.
func (g *NginxGenerator) Validate(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	content := string(data)

	if strings.Count(content, "{") != strings.Count(content, "}") {
		return fmt.Errorf("mismatched braces in %s", path)
	}
	if !strings.Contains(content, "location") {
		klog.Warningf("No location blocks found in %s", path)
	}
	return nil
}

// serviceDNS returns the in-cluster DNS target for one service port.
func serviceDNS(svc *model.Service, port model.Port) string {
	return fmt.Sprintf("%s.%s.svc.cluster.local:%d", svc.Name, svc.Namespace, port.Port)
}

// locationPath builds the /{namespace}_{service}_{port} path, with anything
// outside [a-zA-Z0-9-_/] replaced and underscore runs collapsed.
func locationPath(svc *model.Service, port model.Port) string {
	path := fmt.Sprintf("/%s_%s_%d", svc.Namespace, svc.Name, port.Port)
	path = pathSanitizer.ReplaceAllString(path, "_")
	return underscoreCollapse.ReplaceAllString(path, "_")
}
