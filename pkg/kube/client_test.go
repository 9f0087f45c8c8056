package kube

import (
	"context"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/porthole-sh/porthole/pkg/config"
)

func newTestClient(objects ...runtime.Object) (*Client, *fake.Clientset) {
	clientset := fake.NewSimpleClientset(objects...)
	return NewClient(clientset, 5*time.Second), clientset
}

func forbidden(resource string) func(k8stesting.Action) (bool, runtime.Object, error) {
	return func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewForbidden(schema.GroupResource{Resource: resource}, "", nil)
	}
}

func TestListNamespaces(t *testing.T) {
	client, _ := newTestClient(
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "default"}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "kube-system"}},
	)

	names, err := client.ListNamespaces(context.Background())
	if err != nil {
		t.Fatalf("ListNamespaces() error = %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 namespaces, got %v", names)
	}
}

func TestListServices(t *testing.T) {
	client, _ := newTestClient(
		&corev1.Service{ObjectMeta: metav1.ObjectMeta{Name: "webapp", Namespace: "default"}},
		&corev1.Service{ObjectMeta: metav1.ObjectMeta{Name: "other", Namespace: "prod"}},
	)

	services, err := client.ListServices(context.Background(), "default")
	if err != nil {
		t.Fatalf("ListServices() error = %v", err)
	}
	if len(services) != 1 || services[0].Name != "webapp" {
		t.Fatalf("expected [webapp], got %v", services)
	}
}

func TestListEndpointSlicesFiltersByServiceLabel(t *testing.T) {
	client, _ := newTestClient(
		&discoveryv1.EndpointSlice{ObjectMeta: metav1.ObjectMeta{
			Name:      "webapp-abc",
			Namespace: "default",
			Labels:    map[string]string{config.ServiceNameLabel: "webapp"},
		}},
		&discoveryv1.EndpointSlice{ObjectMeta: metav1.ObjectMeta{
			Name:      "other-def",
			Namespace: "default",
			Labels:    map[string]string{config.ServiceNameLabel: "other"},
		}},
	)

	slices, err := client.ListEndpointSlices(context.Background(), "default", "webapp")
	if err != nil {
		t.Fatalf("ListEndpointSlices() error = %v", err)
	}
	if len(slices) != 1 || slices[0].Name != "webapp-abc" {
		t.Fatalf("expected [webapp-abc], got %v", slices)
	}
}

func TestGetEndpointsNotFound(t *testing.T) {
	client, _ := newTestClient()

	_, err := client.GetEndpoints(context.Background(), "default", "missing")
	if !apierrors.IsNotFound(err) {
		t.Fatalf("expected NotFound error, got %v", err)
	}
}

func TestCheckConnectivityOK(t *testing.T) {
	client, _ := newTestClient(
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "default"}},
	)

	if err := client.CheckConnectivity(context.Background()); err != nil {
		t.Fatalf("CheckConnectivity() error = %v", err)
	}
	if client.EndpointsDegraded() {
		t.Fatal("EndpointsDegraded() = true on a healthy probe")
	}
}

func TestCheckConnectivityUnauthorized(t *testing.T) {
	client, clientset := newTestClient()
	clientset.PrependReactor("list", "namespaces", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewUnauthorized("token expired")
	})

	if err := client.CheckConnectivity(context.Background()); err == nil {
		t.Fatal("expected error for 401 on namespaces")
	}
}

func TestCheckConnectivityForbiddenNamespaces(t *testing.T) {
	client, clientset := newTestClient()
	clientset.PrependReactor("list", "namespaces", forbidden("namespaces"))

	if err := client.CheckConnectivity(context.Background()); err == nil {
		t.Fatal("expected error for 403 on namespaces")
	}
}

func TestCheckConnectivityForbiddenServices(t *testing.T) {
	client, clientset := newTestClient()
	clientset.PrependReactor("list", "services", forbidden("services"))

	if err := client.CheckConnectivity(context.Background()); err == nil {
		t.Fatal("expected error for 403 on services")
	}
}

func TestCheckConnectivityForbiddenEndpointsDegrades(t *testing.T) {
	client, clientset := newTestClient()
	clientset.PrependReactor("list", "endpoints", forbidden("endpoints"))

	if err := client.CheckConnectivity(context.Background()); err != nil {
		t.Fatalf("CheckConnectivity() error = %v, want degraded mode instead", err)
	}
	if !client.EndpointsDegraded() {
		t.Fatal("EndpointsDegraded() = false after forbidden endpoints listing")
	}
}

func TestClusterInfo(t *testing.T) {
	client, _ := newTestClient(
		&corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: "node-1"}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "default"}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "prod"}},
	)

	info, err := client.ClusterInfo(context.Background())
	if err != nil {
		t.Fatalf("ClusterInfo() error = %v", err)
	}
	if info.NodeCount != 1 || info.NamespaceCount != 2 {
		t.Fatalf("unexpected cluster info: %+v", info)
	}
}

func TestNewClientDefaultTimeout(t *testing.T) {
	client := NewClient(fake.NewSimpleClientset(), 0)
	if client.timeout != config.DefaultAPITimeout {
		t.Fatalf("timeout = %v, want %v", client.timeout, config.DefaultAPITimeout)
	}
}
