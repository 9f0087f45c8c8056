// Package model defines the normalized view of cluster services produced by
// discovery. All entities are built fresh each discovery cycle and handed to
// the artifact generators; nothing here survives across cycles.
package model

import (
	"fmt"
	"time"
)

// ServiceType mirrors the Kubernetes service types we care about.
type ServiceType string

const (
	ServiceTypeClusterIP    ServiceType = "ClusterIP"
	ServiceTypeNodePort     ServiceType = "NodePort"
	ServiceTypeLoadBalancer ServiceType = "LoadBalancer"
	ServiceTypeExternalName ServiceType = "ExternalName"
)

// EndpointStatus is the aggregated health of a service's endpoint set.
type EndpointStatus string

const (
	EndpointStatusHealthy   EndpointStatus = "healthy"
	EndpointStatusUnhealthy EndpointStatus = "unhealthy"
	EndpointStatusUnknown   EndpointStatus = "unknown"
)

const (
	MinPort = 1
	MaxPort = 65535
)

// ValidationError reports a malformed service record. Records failing
// validation are dropped by the aggregator; they never abort a cycle.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Port is one declared service port.
type Port struct {
	Name       string
	Port       int32
	TargetPort string
	Protocol   string
	NodePort   int32
}

// Validate checks the port range. NodePort is only checked when set.
func (p *Port) Validate() error {
	if p.Port < MinPort || p.Port > MaxPort {
		return &ValidationError{
			Field:  "port",
			Reason: fmt.Sprintf("port %d must be between %d and %d", p.Port, MinPort, MaxPort),
		}
	}
	if p.NodePort != 0 && (p.NodePort < MinPort || p.NodePort > MaxPort) {
		return &ValidationError{
			Field:  "nodePort",
			Reason: fmt.Sprintf("node port %d must be between %d and %d", p.NodePort, MinPort, MaxPort),
		}
	}
	return nil
}

// Endpoint is one concrete (ip, port) pair backing a service.
type Endpoint struct {
	IP       string
	Port     int32
	Ready    bool
	Hostname string
}

// Service is the canonical, normalized service entity. Identity is the
// (Namespace, Name) pair, unique within one discovery cycle.
type Service struct {
	Name        string
	Namespace   string
	Type        ServiceType
	ClusterIP   string
	ExternalIPs []string
	Ports       []Port
	Endpoints   []Endpoint
	Labels      map[string]string
	Annotations map[string]string
	Selector    map[string]string
	CreatedAt   time.Time

	Status   EndpointStatus
	Frontend bool

	// HTTPResponseCode is the status observed probing the service root path,
	// zero when the probe did not run or could not connect.
	HTTPResponseCode int
	RedirectURL      string
}

// Validate rejects records with an empty name or namespace, or any port
// outside the valid range. Normalization never clamps a bad port.
func (s *Service) Validate() error {
	if s.Name == "" {
		return &ValidationError{Field: "name", Reason: "service name cannot be empty"}
	}
	if s.Namespace == "" {
		return &ValidationError{Field: "namespace", Reason: "namespace cannot be empty"}
	}
	for i := range s.Ports {
		if err := s.Ports[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DisplayName returns the namespace/name form used in logs and artifacts.
func (s *Service) DisplayName() string {
	return s.Namespace + "/" + s.Name
}

// IsHeadless reports whether the service has no cluster-assigned virtual IP.
// The API encodes this either as an empty cluster IP or the literal "None".
func (s *Service) IsHeadless() bool {
	return s.ClusterIP == "" || s.ClusterIP == "None"
}

// HasReadyEndpoints reports whether the service resolved at least one ready
// endpoint this cycle.
func (s *Service) HasReadyEndpoints() bool {
	return s.Status == EndpointStatusHealthy
}

// PortDisplay renders a port as name:port, or just the number when unnamed.
func (s *Service) PortDisplay(p Port) string {
	if p.Name != "" {
		return fmt.Sprintf("%s:%d", p.Name, p.Port)
	}
	return fmt.Sprintf("%d", p.Port)
}

// ProxyPath returns the reverse-proxy location path for one service port.
func (s *Service) ProxyPath(p Port) string {
	return fmt.Sprintf("/%s_%s_%d/", s.Namespace, s.Name, p.Port)
}
