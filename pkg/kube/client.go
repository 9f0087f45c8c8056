// Package kube wraps cluster API access behind a small listing surface. It
// owns client bootstrapping (in-cluster or kubeconfig), the startup
// connectivity probe, and the per-call timeout applied to every request.
package kube

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/klog/v2"

	"github.com/porthole-sh/porthole/pkg/config"
)

// Client provides point-in-time listings against one cluster. It is reused
// across discovery cycles by a single caller; only one cycle runs at a time.
type Client struct {
	clientset kubernetes.Interface
	timeout   time.Duration

	// endpointsDegraded is set when the startup probe finds the service
	// account cannot list endpoints. The resolver reports status unknown for
	// services it cannot resolve in that case.
	endpointsDegraded bool
}

// NewClient wraps an existing clientset. Used directly by tests with the fake
// clientset.
func NewClient(clientset kubernetes.Interface, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = config.DefaultAPITimeout
	}
	return &Client{clientset: clientset, timeout: timeout}
}

// NewClientForConfig builds a client from kubeconfig or in-cluster config.
func NewClientForConfig(kubeconfigPath string, timeout time.Duration) (*Client, error) {
	restConfig, err := BuildRestConfig(kubeconfigPath)
	if err != nil {
		return nil, err
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return NewClient(clientset, timeout), nil
}

// BuildRestConfig resolves cluster credentials: an explicit kubeconfig path
// wins, then in-cluster config, then the default kubeconfig locations.
func BuildRestConfig(kubeconfigPath string) (*rest.Config, error) {
	if kubeconfigPath != "" {
		restConfig, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load kubeconfig %s: %w", kubeconfigPath, err)
		}
		return restConfig, nil
	}

	if restConfig, err := rest.InClusterConfig(); err == nil {
		klog.V(2).Info("Using in-cluster Kubernetes configuration")
		return restConfig, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("no in-cluster config and no home directory: %w", err)
	}
	defaultPath := filepath.Join(home, ".kube", "config")
	restConfig, err := clientcmd.BuildConfigFromFlags("", defaultPath)
	if err != nil {
		return nil, fmt.Errorf("no valid Kubernetes configuration found: %w", err)
	}
	klog.V(2).Infof("Using kubeconfig from %s", defaultPath)
	return restConfig, nil
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// ListNamespaces returns the names of all namespaces in the cluster.
func (c *Client) ListNamespaces(ctx context.Context) ([]string, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	nsList, err := c.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}

	names := make([]string, 0, len(nsList.Items))
	for i := range nsList.Items {
		names = append(names, nsList.Items[i].Name)
	}
	return names, nil
}

// ListServices returns the raw services in one namespace.
func (c *Client) ListServices(ctx context.Context, namespace string) ([]corev1.Service, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	svcList, err := c.clientset.CoreV1().Services(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	return svcList.Items, nil
}

// ListEndpointSlices returns the EndpointSlices backing one service, selected
// by the standard service-name label.
func (c *Client) ListEndpointSlices(ctx context.Context, namespace, serviceName string) ([]discoveryv1.EndpointSlice, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	sliceList, err := c.clientset.DiscoveryV1().EndpointSlices(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("%s=%s", config.ServiceNameLabel, serviceName),
	})
	if err != nil {
		return nil, err
	}
	return sliceList.Items, nil
}

// GetEndpoints returns the legacy Endpoints object for one service.
func (c *Client) GetEndpoints(ctx context.Context, namespace, serviceName string) (*corev1.Endpoints, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	return c.clientset.CoreV1().Endpoints(namespace).Get(ctx, serviceName, metav1.GetOptions{})
}

// EndpointsDegraded reports whether endpoint listing was found to be
// forbidden at startup.
func (c *Client) EndpointsDegraded() bool {
	return c.endpointsDegraded
}

// CheckConnectivity verifies API reachability and permissions before the
// first cycle. Auth failures on namespaces or services abort the run; a
// forbidden endpoints listing only degrades endpoint status to unknown.
func (c *Client) CheckConnectivity(ctx context.Context) error {
	probeCtx, cancel := c.callContext(ctx)
	defer cancel()

	one := int64(1)
	if _, err := c.clientset.CoreV1().Namespaces().List(probeCtx, metav1.ListOptions{Limit: one}); err != nil {
		switch {
		case apierrors.IsUnauthorized(err):
			return fmt.Errorf("authentication failed (401): check kubeconfig or service account token: %w", err)
		case apierrors.IsForbidden(err):
			return fmt.Errorf("authorization failed (403): service account cannot list namespaces: %w", err)
		default:
			return fmt.Errorf("failed to reach Kubernetes API: %w", err)
		}
	}

	if _, err := c.clientset.CoreV1().Services(metav1.NamespaceAll).List(probeCtx, metav1.ListOptions{Limit: one}); err != nil {
		if apierrors.IsForbidden(err) {
			return fmt.Errorf("authorization failed (403): service account cannot list services: %w", err)
		}
		return fmt.Errorf("failed to list services: %w", err)
	}

	if _, err := c.clientset.CoreV1().Endpoints(metav1.NamespaceAll).List(probeCtx, metav1.ListOptions{Limit: one}); err != nil {
		if apierrors.IsForbidden(err) {
			klog.Warning("Service account cannot list endpoints; endpoint status detection will be limited")
			c.endpointsDegraded = true
		} else {
			return fmt.Errorf("failed to list endpoints: %w", err)
		}
	}

	klog.V(2).Info("Kubernetes API connectivity verified")
	return nil
}

// Info summarizes the cluster for the info command.
type Info struct {
	NodeCount      int
	NamespaceCount int
}

// ClusterInfo returns basic cluster statistics.
func (c *Client) ClusterInfo(ctx context.Context) (*Info, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	nodes, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	namespaces, err := c.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}

	return &Info{
		NodeCount:      len(nodes.Items),
		NamespaceCount: len(namespaces.Items),
	}, nil
}
