// Package discovery reconciles the cluster's service and endpoint APIs into
// one normalized, health-annotated result per cycle. A cycle tolerates
// partial failure: a bad service record or a failing namespace never aborts
// the scan, only auth failure at startup does.
package discovery

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"

	"github.com/porthole-sh/porthole/pkg/config"
	"github.com/porthole-sh/porthole/pkg/model"
)

// Reader is the cluster listing surface discovery depends on. *kube.Client
// satisfies it in production; tests wrap the fake clientset.
type Reader interface {
	ListNamespaces(ctx context.Context) ([]string, error)
	ListServices(ctx context.Context, namespace string) ([]corev1.Service, error)
	ListEndpointSlices(ctx context.Context, namespace, serviceName string) ([]discoveryv1.EndpointSlice, error)
	GetEndpoints(ctx context.Context, namespace, serviceName string) (*corev1.Endpoints, error)
	EndpointsDegraded() bool
}

// Discoverer runs one full point-in-time scan of the cluster per call.
type Discoverer struct {
	reader     Reader
	cfg        *config.Config
	resolver   *Resolver
	classifier *Classifier
	skipSet    sets.Set[string]
}

// NewDiscoverer creates a Discoverer for the given reader and configuration.
func NewDiscoverer(reader Reader, cfg *config.Config) *Discoverer {
	return &Discoverer{
		reader:     reader,
		cfg:        cfg,
		resolver:   NewResolver(reader),
		classifier: NewClassifier(cfg.FrontendPatterns),
		skipSet:    sets.New(cfg.SkipNamespaces...),
	}
}

// Classifier exposes the frontend classifier so generators can compute
// per-port frontend flags with the same pattern set.
func (d *Discoverer) Classifier() *Classifier {
	return d.classifier
}

// Discover scans all non-skipped namespaces and returns the cycle result.
// The scanned and skipped partitions are disjoint and together cover exactly
// the namespace list observed at cycle start. A cancelled context aborts the
// cycle and discards the partial result.
func (d *Discoverer) Discover(ctx context.Context) (*model.DiscoveryResult, error) {
	klog.Info("Starting service discovery")

	namespaces, err := d.reader.ListNamespaces(ctx)
	if err != nil {
		return nil, err
	}

	scanSet, skipped := FilterNamespaces(namespaces, d.skipSet)
	klog.V(2).Infof("Filtered %d namespaces to %d (skip set: %d)",
		len(namespaces), len(scanSet), len(d.skipSet))

	var services []*model.Service
	scanned := make([]string, 0, len(scanSet))
	seen := sets.New[string]()

	for _, namespace := range scanSet {
		// A stop signal between namespaces aborts the cycle; partial results
		// are discarded, not emitted.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		nsServices, err := d.discoverNamespace(ctx, namespace, seen)
		if err != nil {
			klog.Errorf("Failed to discover services in namespace %s: %v", namespace, err)
			skipped = append(skipped, namespace)
			continue
		}
		services = append(services, nsServices...)
		scanned = append(scanned, namespace)
	}

	result := model.NewDiscoveryResult(services, scanned, skipped)
	klog.Infof("Service discovery completed: %d services found in %d namespaces",
		result.TotalServices, len(scanned))
	return result, nil
}

// discoverNamespace lists and processes one namespace's services. Individual
// bad records are dropped with a logged error; only the service listing
// itself failing marks the namespace skipped.
func (d *Discoverer) discoverNamespace(ctx context.Context, namespace string, seen sets.Set[string]) ([]*model.Service, error) {
	rawServices, err := d.reader.ListServices(ctx, namespace)
	if err != nil {
		return nil, err
	}

	var services []*model.Service
	for i := range rawServices {
		svc, err := ConvertService(&rawServices[i])
		if err != nil {
			klog.Errorf("Failed to process service %s/%s: %v", namespace, rawServices[i].Name, err)
			continue
		}

		if svc.IsHeadless() && !d.cfg.IncludeHeadless {
			klog.V(4).Infof("Skipping headless service %s", svc.DisplayName())
			continue
		}

		// A service object seen twice in one cycle keeps its first record,
		// so downstream artifacts stay deduplicated.
		if seen.Has(svc.DisplayName()) {
			klog.V(4).Infof("Skipping duplicate service record %s", svc.DisplayName())
			continue
		}
		seen.Insert(svc.DisplayName())

		svc.Endpoints = d.resolver.Resolve(ctx, svc)
		svc.Status = d.resolver.Status(svc.Endpoints)
		svc.Frontend = d.classifier.Match(svc.Name)

		services = append(services, svc)
	}
	return services, nil
}
