package discovery

import (
	corev1 "k8s.io/api/core/v1"

	"github.com/porthole-sh/porthole/pkg/model"
)

// ConvertService normalizes a raw service record into the canonical model.
// Defaults are applied first (protocol TCP, type ClusterIP), then the record
// is validated; a record with an empty name or namespace or an out-of-range
// port is rejected, never clamped.
func ConvertService(svc *corev1.Service) (*model.Service, error) {
	ports := make([]model.Port, 0, len(svc.Spec.Ports))
	for _, p := range svc.Spec.Ports {
		protocol := string(p.Protocol)
		if protocol == "" {
			protocol = "TCP"
		}
		targetPort := ""
		if p.TargetPort.StrVal != "" || p.TargetPort.IntVal != 0 {
			targetPort = p.TargetPort.String()
		}
		ports = append(ports, model.Port{
			Name:       p.Name,
			Port:       p.Port,
			TargetPort: targetPort,
			Protocol:   protocol,
			NodePort:   p.NodePort,
		})
	}

	serviceType := model.ServiceType(svc.Spec.Type)
	if serviceType == "" {
		serviceType = model.ServiceTypeClusterIP
	}

	out := &model.Service{
		Name:        svc.Name,
		Namespace:   svc.Namespace,
		Type:        serviceType,
		ClusterIP:   svc.Spec.ClusterIP,
		ExternalIPs: svc.Spec.ExternalIPs,
		Ports:       ports,
		Labels:      svc.Labels,
		Annotations: svc.Annotations,
		Selector:    svc.Spec.Selector,
		CreatedAt:   svc.CreationTimestamp.Time,
		Status:      model.EndpointStatusUnknown,
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
