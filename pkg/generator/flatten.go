// Package generator turns a discovery result into the downstream artifacts:
// the services.json manifest and the nginx locations file. Both consume the
// same flattened per-port view, which guarantees at most one record per
// (namespace, service, port) triple.
package generator

import (
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/porthole-sh/porthole/pkg/discovery"
	"github.com/porthole-sh/porthole/pkg/model"
)

// Record is one (namespace, service, port) row of the flattened view, shaped
// for the manifest and portal consumers.
type Record struct {
	Namespace        string  `json:"namespace"`
	Service          string  `json:"service"`
	Port             int32   `json:"port"`
	PortName         string  `json:"port_name,omitempty"`
	Protocol         string  `json:"protocol"`
	ServiceType      string  `json:"service_type"`
	ClusterIP        string  `json:"cluster_ip,omitempty"`
	EndpointStatus   string  `json:"endpoint_status"`
	IsFrontend       bool    `json:"is_frontend"`
	HasEndpoints     bool    `json:"has_endpoints"`
	EndpointCount    int     `json:"endpoint_count"`
	ProxyURL         string  `json:"proxy_url"`
	DisplayName      string  `json:"display_name"`
	CreatedAt        *string `json:"created_at"`
	HTTPResponseCode *int    `json:"http_response_code"`
	RedirectURL      string  `json:"redirect_url"`
}

// Flatten produces the deduplicated per-port view in stable order: services
// sorted by namespace then name, ports in declared order. A later duplicate
// of a (namespace, service, port) triple is suppressed, so data from the
// resolution strategy tried first wins.
func Flatten(result *model.DiscoveryResult, classifier *discovery.Classifier) []Record {
	records := make([]Record, 0, len(result.Services))
	seen := sets.New[string]()

	for _, svc := range result.SortedServices() {
		for _, port := range svc.Ports {
			key := fmt.Sprintf("%s/%s:%d", svc.Namespace, svc.Name, port.Port)
			if seen.Has(key) {
				continue
			}
			seen.Insert(key)
			records = append(records, newRecord(svc, port, classifier))
		}
	}
	return records
}

func newRecord(svc *model.Service, port model.Port, classifier *discovery.Classifier) Record {
	var createdAt *string
	if !svc.CreatedAt.IsZero() {
		iso := svc.CreatedAt.Format(time.RFC3339)
		createdAt = &iso
	}
	var responseCode *int
	if svc.HTTPResponseCode != 0 {
		code := svc.HTTPResponseCode
		responseCode = &code
	}

	return Record{
		Namespace:        svc.Namespace,
		Service:          svc.Name,
		Port:             port.Port,
		PortName:         port.Name,
		Protocol:         port.Protocol,
		ServiceType:      string(svc.Type),
		ClusterIP:        svc.ClusterIP,
		EndpointStatus:   string(svc.Status),
		IsFrontend:       portFrontend(svc, port, classifier),
		HasEndpoints:     svc.HasReadyEndpoints(),
		EndpointCount:    len(svc.Endpoints),
		ProxyURL:         svc.ProxyPath(port),
		DisplayName:      fmt.Sprintf("%s:%d", svc.DisplayName(), port.Port),
		CreatedAt:        createdAt,
		HTTPResponseCode: responseCode,
		RedirectURL:      svc.RedirectURL,
	}
}

// portFrontend computes the per-port frontend flag: a service-name match
// propagates to every port, a port-name match tags only that port.
func portFrontend(svc *model.Service, port model.Port, classifier *discovery.Classifier) bool {
	if classifier == nil {
		return svc.Frontend
	}
	if classifier.Match(svc.Name) {
		return true
	}
	return port.Name != "" && classifier.Match(port.Name)
}
