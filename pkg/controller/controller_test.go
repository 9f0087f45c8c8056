package controller

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/porthole-sh/porthole/pkg/config"
	"github.com/porthole-sh/porthole/pkg/generator"
	"github.com/porthole-sh/porthole/pkg/kube"
	"github.com/porthole-sh/porthole/pkg/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.SkipNamespaces = nil
	cfg.EnableHTTPCheck = false
	return cfg
}

func newTestReader(objects ...runtime.Object) *kube.Client {
	return kube.NewClient(fake.NewSimpleClientset(objects...), 5*time.Second)
}

// webappCluster is one namespace with a single service backed by a ready
// EndpointSlice.
func webappCluster() []runtime.Object {
	ready := true
	port := int32(8080)
	portName := "http"
	return []runtime.Object{
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "default"}},
		&corev1.Service{
			ObjectMeta: metav1.ObjectMeta{Name: "webapp", Namespace: "default"},
			Spec: corev1.ServiceSpec{
				Type:      corev1.ServiceTypeClusterIP,
				ClusterIP: "10.96.0.10",
				Ports:     []corev1.ServicePort{{Name: "http", Port: 80, Protocol: corev1.ProtocolTCP}},
			},
		},
		&discoveryv1.EndpointSlice{
			ObjectMeta: metav1.ObjectMeta{
				Name:      "webapp-abc",
				Namespace: "default",
				Labels:    map[string]string{config.ServiceNameLabel: "webapp"},
			},
			AddressType: discoveryv1.AddressTypeIPv4,
			Endpoints: []discoveryv1.Endpoint{{
				Addresses:  []string{"10.0.1.1"},
				Conditions: discoveryv1.EndpointConditions{Ready: &ready},
			}},
			Ports: []discoveryv1.EndpointPort{{Name: &portName, Port: &port}},
		},
	}
}

func TestRunOnceGeneratesArtifacts(t *testing.T) {
	cfg := testConfig(t)
	c := New(cfg, newTestReader(webappCluster()...), DefaultOptions())

	paths, err := c.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 artifacts, got %v", paths)
	}

	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, cfg.ServiceJSONFile))
	if err != nil {
		t.Fatalf("failed to read manifest: %v", err)
	}
	var manifest generator.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("manifest is not valid JSON: %v", err)
	}
	if manifest.Meta.TotalServices != 1 || manifest.Meta.HealthyServices != 1 {
		t.Fatalf("unexpected meta: %+v", manifest.Meta)
	}
	if len(manifest.Services) != 1 || manifest.Services[0].Service != "webapp" {
		t.Fatalf("unexpected services: %+v", manifest.Services)
	}

	conf, err := os.ReadFile(filepath.Join(cfg.OutputDir, cfg.LocationsConfigFile))
	if err != nil {
		t.Fatalf("failed to read locations config: %v", err)
	}
	if len(conf) == 0 {
		t.Fatal("locations config is empty")
	}
}

func TestRunOnceEmptyCluster(t *testing.T) {
	cfg := testConfig(t)
	c := New(cfg, newTestReader(), DefaultOptions())

	paths, err := c.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected empty artifacts to still be written, got %v", paths)
	}

	var manifest generator.Manifest
	data, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("empty manifest is not valid JSON: %v", err)
	}
	if manifest.Meta.TotalServices != 0 {
		t.Fatalf("TotalServices = %d, want 0", manifest.Meta.TotalServices)
	}
}

func TestRunOnceOptionsDisableGenerators(t *testing.T) {
	cfg := testConfig(t)
	c := New(cfg, newTestReader(webappCluster()...), Options{GenerateManifest: true})

	paths, err := c.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected manifest only, got %v", paths)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, cfg.LocationsConfigFile)); !os.IsNotExist(err) {
		t.Fatal("nginx config generated despite being disabled")
	}
}

func TestDiscoverDoesNotGenerate(t *testing.T) {
	cfg := testConfig(t)
	c := New(cfg, newTestReader(webappCluster()...), DefaultOptions())

	result, err := c.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if result.TotalServices != 1 {
		t.Fatalf("TotalServices = %d, want 1", result.TotalServices)
	}
	if result.Services[0].Status != model.EndpointStatusHealthy {
		t.Fatalf("Status = %v, want healthy", result.Services[0].Status)
	}

	if _, err := os.Stat(filepath.Join(cfg.OutputDir, cfg.ServiceJSONFile)); !os.IsNotExist(err) {
		t.Fatal("Discover() must not write artifacts")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.RefreshInterval = 10 * time.Millisecond
	c := New(cfg, newTestReader(webappCluster()...), DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	// Let at least one cycle complete.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after context cancellation")
	}

	if _, err := os.Stat(filepath.Join(cfg.OutputDir, cfg.ServiceJSONFile)); err != nil {
		t.Fatalf("watch loop produced no manifest: %v", err)
	}
}
