package discovery

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/klog/v2"

	"github.com/porthole-sh/porthole/pkg/model"
)

// resolveStatus tags the outcome of one resolution attempt, so the fallback
// chain is driven by explicit values instead of error-type inspection at the
// call sites.
type resolveStatus int

const (
	// resolveFound means the strategy answered, possibly with zero endpoints.
	resolveFound resolveStatus = iota
	// resolveNotSupported means the API rejected the lookup with not-found,
	// the expected signal to try the next strategy.
	resolveNotSupported
	// resolveFailed means the API failed for any other reason.
	resolveFailed
)

type resolution struct {
	endpoints []model.Endpoint
	status    resolveStatus
	err       error
}

// Resolver resolves the reachable endpoints for one service, preferring the
// EndpointSlice API and falling back to the legacy Endpoints API. It never
// fails a discovery cycle: any terminal failure yields an empty endpoint set.
type Resolver struct {
	reader Reader
}

// NewResolver creates a Resolver on top of a cluster reader.
func NewResolver(reader Reader) *Resolver {
	return &Resolver{reader: reader}
}

// Resolve returns the endpoint set for svc. The slice API is tried first;
// not-found, any other slice error, or an empty slice answer all fall back to
// the legacy API.
func (r *Resolver) Resolve(ctx context.Context, svc *model.Service) []model.Endpoint {
	attempt := r.resolveSlices(ctx, svc)
	switch attempt.status {
	case resolveFound:
		if len(attempt.endpoints) > 0 {
			return attempt.endpoints
		}
	case resolveNotSupported:
		klog.V(4).Infof("EndpointSlice API not available for %s, falling back to Endpoints API", svc.DisplayName())
	case resolveFailed:
		klog.Errorf("Failed to list endpoint slices for %s: %v", svc.DisplayName(), attempt.err)
	}

	fallback := r.resolveLegacy(ctx, svc)
	switch fallback.status {
	case resolveFound:
		return fallback.endpoints
	case resolveNotSupported:
		klog.V(4).Infof("No endpoints object for service %s", svc.DisplayName())
	case resolveFailed:
		klog.Errorf("Failed to get endpoints for %s: %v", svc.DisplayName(), fallback.err)
	}
	return nil
}

// Status aggregates per-endpoint readiness into one service-level status. A
// service is healthy when at least one endpoint is ready; an empty set is
// unhealthy unless endpoint access is degraded, in which case the status is
// unknown because nothing trustworthy was observed.
func (r *Resolver) Status(endpoints []model.Endpoint) model.EndpointStatus {
	if len(endpoints) == 0 {
		if r.reader.EndpointsDegraded() {
			return model.EndpointStatusUnknown
		}
		return model.EndpointStatusUnhealthy
	}
	for _, ep := range endpoints {
		if ep.Ready {
			return model.EndpointStatusHealthy
		}
	}
	return model.EndpointStatusUnhealthy
}

func (r *Resolver) resolveSlices(ctx context.Context, svc *model.Service) resolution {
	slices, err := r.reader.ListEndpointSlices(ctx, svc.Namespace, svc.Name)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return resolution{status: resolveNotSupported}
		}
		return resolution{status: resolveFailed, err: err}
	}

	var endpoints []model.Endpoint
	for i := range slices {
		slice := &slices[i]
		for _, ep := range slice.Endpoints {
			if len(ep.Addresses) == 0 {
				continue
			}

			// Absent conditions mean ready per the EndpointSlice contract.
			ready := true
			if ep.Conditions.Ready != nil {
				ready = *ep.Conditions.Ready
			}
			hostname := ""
			if ep.Hostname != nil {
				hostname = *ep.Hostname
			}

			for _, address := range ep.Addresses {
				if len(slice.Ports) > 0 {
					for _, port := range slice.Ports {
						if port.Port == nil {
							continue
						}
						endpoints = append(endpoints, model.Endpoint{
							IP:       address,
							Port:     *port.Port,
							Ready:    ready,
							Hostname: hostname,
						})
					}
					continue
				}
				// Slice declares no ports: fan out over the service's ports.
				for _, port := range svc.Ports {
					endpoints = append(endpoints, model.Endpoint{
						IP:       address,
						Port:     port.Port,
						Ready:    ready,
						Hostname: hostname,
					})
				}
			}
		}
	}
	return resolution{status: resolveFound, endpoints: endpoints}
}

func (r *Resolver) resolveLegacy(ctx context.Context, svc *model.Service) resolution {
	obj, err := r.reader.GetEndpoints(ctx, svc.Namespace, svc.Name)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return resolution{status: resolveNotSupported}
		}
		return resolution{status: resolveFailed, err: err}
	}

	var endpoints []model.Endpoint
	for i := range obj.Subsets {
		subset := &obj.Subsets[i]
		endpoints = append(endpoints, subsetEndpoints(subset, subset.Addresses, true, svc)...)
		endpoints = append(endpoints, subsetEndpoints(subset, subset.NotReadyAddresses, false, svc)...)
	}
	return resolution{status: resolveFound, endpoints: endpoints}
}

func subsetEndpoints(subset *corev1.EndpointSubset, addresses []corev1.EndpointAddress, ready bool, svc *model.Service) []model.Endpoint {
	var endpoints []model.Endpoint
	for _, address := range addresses {
		if len(subset.Ports) > 0 {
			for _, port := range subset.Ports {
				endpoints = append(endpoints, model.Endpoint{
					IP:       address.IP,
					Port:     port.Port,
					Ready:    ready,
					Hostname: address.Hostname,
				})
			}
			continue
		}
		for _, port := range svc.Ports {
			endpoints = append(endpoints, model.Endpoint{
				IP:       address.IP,
				Port:     port.Port,
				Ready:    ready,
				Hostname: address.Hostname,
			})
		}
	}
	return endpoints
}
