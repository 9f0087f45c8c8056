// Package controller wires discovery, HTTP checking, and artifact generation
// into cycles, and runs the periodic watch loop. Retry across cycles lives
// here; a single cycle never retries internally.
package controller

import (
	"context"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"

	"github.com/porthole-sh/porthole/pkg/config"
	"github.com/porthole-sh/porthole/pkg/discovery"
	"github.com/porthole-sh/porthole/pkg/generator"
	"github.com/porthole-sh/porthole/pkg/httpcheck"
	"github.com/porthole-sh/porthole/pkg/model"
)

// Options toggles the artifact generators for one controller instance.
type Options struct {
	GenerateManifest bool
	GenerateNginx    bool
	HTTPCheck        bool
}

// DefaultOptions enables everything; the HTTP check still requires the
// config flag.
func DefaultOptions() Options {
	return Options{GenerateManifest: true, GenerateNginx: true, HTTPCheck: true}
}

// Controller owns one discovery-and-generation pipeline.
type Controller struct {
	cfg        *config.Config
	opts       Options
	discoverer *discovery.Discoverer
	checker    *httpcheck.Checker
	manifest   *generator.ManifestGenerator
	nginx      *generator.NginxGenerator
}

// New builds a Controller on top of a cluster reader.
func New(cfg *config.Config, reader discovery.Reader, opts Options) *Controller {
	discoverer := discovery.NewDiscoverer(reader, cfg)
	return &Controller{
		cfg:        cfg,
		opts:       opts,
		discoverer: discoverer,
		checker:    httpcheck.NewChecker(cfg),
		manifest:   generator.NewManifestGenerator(cfg, discoverer.Classifier()),
		nginx:      generator.NewNginxGenerator(cfg),
	}
}

// Discover runs discovery only, without generating artifacts.
func (c *Controller) Discover(ctx context.Context) (*model.DiscoveryResult, error) {
	return c.discoverer.Discover(ctx)
}

// RunOnce executes one full cycle: discover, probe, generate. An empty
// discovery result still produces valid (empty) artifacts.
func (c *Controller) RunOnce(ctx context.Context) ([]string, error) {
	result, err := c.discoverer.Discover(ctx)
	if err != nil {
		return nil, err
	}

	if c.opts.HTTPCheck && c.cfg.EnableHTTPCheck {
		c.runHTTPChecks(ctx, result)
	}

	var generated []string
	if c.opts.GenerateManifest {
		path, err := c.manifest.Generate(result)
		if err != nil {
			return generated, err
		}
		generated = append(generated, path)
	}

	if c.opts.GenerateNginx {
		path, err := c.nginx.Generate(result)
		if err != nil {
			return generated, err
		}
		if err := c.nginx.Validate(path); err != nil {
			klog.Warningf("Generated nginx config failed validation: %v", err)
		}
		generated = append(generated, path)
	}

	return generated, nil
}

// Run cycles at the configured refresh interval until the context is
// cancelled. The first cycle runs immediately; cycle errors are logged and
// the loop continues.
func (c *Controller) Run(ctx context.Context) {
	klog.Infof("Starting watch mode with %s interval", c.cfg.RefreshInterval)
	wait.UntilWithContext(ctx, func(ctx context.Context) {
		if _, err := c.RunOnce(ctx); err != nil {
			klog.Errorf("Discovery cycle failed: %v", err)
		}
	}, c.cfg.RefreshInterval)
	klog.Info("Watch mode stopped")
}

// runHTTPChecks probes the first port of each healthy service and records
// the observed response on the service before generation.
func (c *Controller) runHTTPChecks(ctx context.Context, result *model.DiscoveryResult) {
	for _, svc := range result.Services {
		if !svc.HasReadyEndpoints() || len(svc.Ports) == 0 {
			continue
		}
		res := c.checker.CheckWithFallback(ctx, svc.Name, svc.Namespace, svc.Ports[0].Port)
		svc.HTTPResponseCode = res.Code
		svc.RedirectURL = res.Note
	}
}
