// Package httpcheck probes discovered services over HTTP to annotate the
// manifest with observed response codes. Probes target the in-cluster DNS
// name, so they only succeed when porthole runs inside the cluster.
package httpcheck

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/porthole-sh/porthole/pkg/config"
)

// Result is the outcome of one probe. Code is zero when no HTTP response was
// received; Note carries the redirect target or the failure reason.
type Result struct {
	Code int
	Note string
}

// Checker issues HTTP probes with a shared, connection-pooling client.
type Checker struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// NewChecker builds a Checker from the HTTP-probe configuration.
func NewChecker(cfg *config.Config) *Checker {
	return &Checker{
		client: &http.Client{
			Timeout: cfg.HTTPTimeout,
			// Redirects are reported, not followed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				// In-cluster services routinely carry self-signed certs.
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		timeout:   cfg.HTTPTimeout,
		userAgent: cfg.HTTPUserAgent,
	}
}

// Check probes the root path of one service port over the given scheme.
func (c *Checker) Check(ctx context.Context, serviceName, namespace string, port int32, scheme string) Result {
	url := fmt.Sprintf("%s://%s.%s.svc.cluster.local:%d/", scheme, serviceName, namespace, port)
	return c.CheckURL(ctx, url)
}

// CheckURL probes an explicit URL.
func (c *Checker) CheckURL(ctx context.Context, url string) Result {
	klog.V(4).Infof("Checking HTTP accessibility for %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Note: fmt.Sprintf("Request failed: %v", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return c.classifyError(url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Result{Code: resp.StatusCode}
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		note := resp.Header.Get("Location")
		if note == "" {
			note = fmt.Sprintf("Redirect (%d)", resp.StatusCode)
		}
		return Result{Code: resp.StatusCode, Note: note}
	default:
		return Result{Code: resp.StatusCode, Note: fmt.Sprintf("HTTP %d Error", resp.StatusCode)}
	}
}

// CheckWithFallback probes over HTTP first and retries HTTPS when the plain
// connection was refused.
func (c *Checker) CheckWithFallback(ctx context.Context, serviceName, namespace string, port int32) Result {
	httpResult := c.Check(ctx, serviceName, namespace, port, "http")
	if httpResult.Code != 0 || httpResult.Note != "Connection refused" {
		return httpResult
	}

	klog.V(4).Infof("HTTP refused for %s/%s:%d, trying HTTPS", namespace, serviceName, port)
	httpsResult := c.Check(ctx, serviceName, namespace, port, "https")
	if httpsResult.Code != 0 {
		return httpsResult
	}
	return httpResult
}

func (c *Checker) classifyError(url string, err error) Result {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err):
		klog.V(4).Infof("HTTP request timeout for %s", url)
		return Result{Note: fmt.Sprintf("Timeout after %s", c.timeout)}
	case strings.Contains(err.Error(), "connection refused"):
		klog.V(4).Infof("Connection refused for %s", url)
		return Result{Note: "Connection refused"}
	default:
		klog.V(4).Infof("HTTP request failed for %s: %v", url, err)
		return Result{Note: fmt.Sprintf("Request failed: %v", err)}
	}
}
