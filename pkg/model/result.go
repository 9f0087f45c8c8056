package model

import (
	"sort"
	"time"

	"github.com/samber/lo"
)

// DiscoveryResult is the output of one discovery cycle. The counters are a
// pure function of Services and are only ever computed by NewDiscoveryResult.
type DiscoveryResult struct {
	Services          []*Service
	NamespacesScanned []string
	NamespacesSkipped []string

	TotalServices     int
	HealthyServices   int
	UnhealthyServices int
	FrontendServices  int

	DiscoveryTime time.Time
}

// NewDiscoveryResult builds a result and derives the counters from the
// service list.
func NewDiscoveryResult(services []*Service, scanned, skipped []string) *DiscoveryResult {
	return &DiscoveryResult{
		Services:          services,
		NamespacesScanned: scanned,
		NamespacesSkipped: skipped,
		TotalServices:     len(services),
		HealthyServices: lo.CountBy(services, func(s *Service) bool {
			return s.Status == EndpointStatusHealthy
		}),
		UnhealthyServices: lo.CountBy(services, func(s *Service) bool {
			return s.Status == EndpointStatusUnhealthy
		}),
		FrontendServices: lo.CountBy(services, func(s *Service) bool {
			return s.Frontend
		}),
		DiscoveryTime: time.Now(),
	}
}

// SortedServices returns the services ordered by namespace then name. The
// generators depend on this ordering for stable, diffable artifacts.
func (r *DiscoveryResult) SortedServices() []*Service {
	sorted := make([]*Service, len(r.Services))
	copy(sorted, r.Services)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Namespace != sorted[j].Namespace {
			return sorted[i].Namespace < sorted[j].Namespace
		}
		return sorted[i].Name < sorted[j].Name
	})
	return sorted
}

// ByNamespace groups the services by namespace.
func (r *DiscoveryResult) ByNamespace() map[string][]*Service {
	return lo.GroupBy(r.Services, func(s *Service) string {
		return s.Namespace
	})
}
