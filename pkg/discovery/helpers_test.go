package discovery

import (
	"context"
	"time"

	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/porthole-sh/porthole/pkg/config"
	"github.com/porthole-sh/porthole/pkg/kube"
)

func boolPtr(b bool) *bool       { return &b }
func int32Ptr(i int32) *int32    { return &i }
func stringPtr(s string) *string { return &s }

// newTestReader builds a reader over the fake clientset, the same way the
// production client wraps the real one.
func newTestReader(objects ...runtime.Object) (*kube.Client, *fake.Clientset) {
	clientset := fake.NewSimpleClientset(objects...)
	return kube.NewClient(clientset, 5*time.Second), clientset
}

// degradedReader reports endpoint access as forbidden-at-startup.
type degradedReader struct {
	Reader
}

func (degradedReader) EndpointsDegraded() bool { return true }

func newNamespace(name string) *corev1.Namespace {
	return &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
}

func newSlice(namespace, serviceName, sliceName string, endpoints []discoveryv1.Endpoint, ports []discoveryv1.EndpointPort) *discoveryv1.EndpointSlice {
	return &discoveryv1.EndpointSlice{
		ObjectMeta: metav1.ObjectMeta{
			Name:      sliceName,
			Namespace: namespace,
			Labels:    map[string]string{config.ServiceNameLabel: serviceName},
		},
		AddressType: discoveryv1.AddressTypeIPv4,
		Endpoints:   endpoints,
		Ports:       ports,
	}
}

func newLegacyEndpoints(namespace, serviceName string, subsets []corev1.EndpointSubset) *corev1.Endpoints {
	return &corev1.Endpoints{
		ObjectMeta: metav1.ObjectMeta{Name: serviceName, Namespace: namespace},
		Subsets:    subsets,
	}
}

func discoverAll(d *Discoverer) ([]string, error) {
	result, err := d.Discover(context.Background())
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(result.Services))
	for _, svc := range result.Services {
		names = append(names, svc.DisplayName())
	}
	return names, nil
}
