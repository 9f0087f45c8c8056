package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/porthole-sh/porthole/pkg/config"
	"github.com/porthole-sh/porthole/pkg/controller"
	"github.com/porthole-sh/porthole/pkg/kube"
	"github.com/porthole-sh/porthole/pkg/model"
	"github.com/porthole-sh/porthole/pkg/reloader"
)

var (
	configFile     string
	kubeconfigPath string
	outputDir      string

	rootCmd = &cobra.Command{
		Use:   "porthole",
		Short: "Kubernetes service discovery and proxy configuration generator",
		Long: `porthole scans the cluster for reachable services, annotates them with
endpoint health, and generates a reverse-proxy configuration and a JSON
manifest for the service portal.`,
		SilenceUsage: true,
	}
)

func main() {
	klog.InitFlags(nil)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to configuration file (JSON or YAML)")
	rootCmd.PersistentFlags().StringVar(&kubeconfigPath, "kubeconfig", "", "Path to kubeconfig file (for local development)")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "", "Output directory for generated files")

	rootCmd.AddCommand(newDiscoverCmd(), newGenerateCmd(), newWatchCmd(), newInfoCmd(), newReloadWatchCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		klog.Infof("Received signal %v, shutting down", sig)
		cancel()
	}()

	return ctx, cancel
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if kubeconfigPath != "" {
		cfg.KubeconfigPath = kubeconfigPath
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	return cfg, nil
}

// buildClient creates the cluster client and runs the startup connectivity
// probe. Auth failures abort the run here, before any cycle starts.
func buildClient(ctx context.Context, cfg *config.Config) (*kube.Client, error) {
	client, err := kube.NewClientForConfig(cfg.KubeconfigPath, cfg.APITimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}
	if err := client.CheckConnectivity(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func newDiscoverCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Discover services in the Kubernetes cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := buildClient(ctx, cfg)
			if err != nil {
				return err
			}

			ctrl := controller.New(cfg, client, controller.Options{})
			result, err := ctrl.Discover(ctx)
			if err != nil {
				return err
			}

			return printResult(result, output)
		},
	}

	cmd.Flags().StringVar(&output, "output", "table", "Output format (table, json, summary)")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	var noNginx, noJSON, noHTTPCheck bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the proxy configuration and service manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := buildClient(ctx, cfg)
			if err != nil {
				return err
			}

			ctrl := controller.New(cfg, client, controller.Options{
				GenerateManifest: !noJSON,
				GenerateNginx:    !noNginx,
				HTTPCheck:        !noHTTPCheck,
			})
			generated, err := ctrl.RunOnce(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Generated %d files:\n", len(generated))
			for _, path := range generated {
				fmt.Printf("  - %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noNginx, "no-nginx", false, "Skip nginx configuration generation")
	cmd.Flags().BoolVar(&noJSON, "no-json", false, "Skip JSON manifest generation")
	cmd.Flags().BoolVar(&noHTTPCheck, "no-http-check", false, "Skip HTTP probing of discovered services")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var interval, maxIterations int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate configurations periodically",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if interval > 0 {
				cfg.RefreshInterval = time.Duration(interval) * time.Second
			}

			client, err := buildClient(ctx, cfg)
			if err != nil {
				return err
			}

			ctrl := controller.New(cfg, client, controller.DefaultOptions())
			if maxIterations > 0 {
				return runBounded(ctx, ctrl, cfg.RefreshInterval, maxIterations)
			}
			ctrl.Run(ctx)
			return nil
		},
	}

	cmd.Flags().IntVar(&interval, "interval", 0, "Refresh interval in seconds (overrides configuration)")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Stop after this many cycles (0 = run forever)")
	return cmd
}

// runBounded runs a fixed number of cycles, mainly useful for smoke testing a
// deployment. Cycle errors are logged, matching the unbounded loop.
func runBounded(ctx context.Context, ctrl *controller.Controller, interval time.Duration, iterations int) error {
	for i := 0; i < iterations; i++ {
		if _, err := ctrl.RunOnce(ctx); err != nil {
			klog.Errorf("Discovery cycle failed: %v", err)
		}
		if i == iterations-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
	return nil
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Display cluster and configuration information",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := buildClient(ctx, cfg)
			if err != nil {
				return err
			}

			info, err := client.ClusterInfo(ctx)
			if err != nil {
				return err
			}

			fmt.Println("Cluster Information:")
			fmt.Printf("  - Nodes: %d\n", info.NodeCount)
			fmt.Printf("  - Namespaces: %d\n", info.NamespaceCount)
			fmt.Println("\nConfiguration:")
			fmt.Printf("  - Output Directory: %s\n", cfg.OutputDir)
			fmt.Printf("  - Skip Namespaces: %d namespaces\n", len(cfg.SkipNamespaces))
			fmt.Printf("  - Include Headless: %v\n", cfg.IncludeHeadless)
			fmt.Printf("  - Refresh Interval: %s\n", cfg.RefreshInterval)
			return nil
		},
	}
}

func newReloadWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "reload-watch",
		Short:  "Watch the output directory and reload nginx on config changes",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return reloader.NewWatcher(cfg.OutputDir).Run(ctx)
		},
	}
	return cmd
}

func printResult(result *model.DiscoveryResult, output string) error {
	switch output {
	case "json":
		type serviceEntry struct {
			Namespace      string  `json:"namespace"`
			Name           string  `json:"name"`
			Type           string  `json:"type"`
			Ports          []int32 `json:"ports"`
			EndpointStatus string  `json:"endpoint_status"`
			IsFrontend     bool    `json:"is_frontend"`
			EndpointCount  int     `json:"endpoint_count"`
		}
		out := struct {
			TotalServices     int            `json:"total_services"`
			HealthyServices   int            `json:"healthy_services"`
			UnhealthyServices int            `json:"unhealthy_services"`
			FrontendServices  int            `json:"frontend_services"`
			NamespacesScanned []string       `json:"namespaces_scanned"`
			NamespacesSkipped []string       `json:"namespaces_skipped"`
			Services          []serviceEntry `json:"services"`
		}{
			TotalServices:     result.TotalServices,
			HealthyServices:   result.HealthyServices,
			UnhealthyServices: result.UnhealthyServices,
			FrontendServices:  result.FrontendServices,
			NamespacesScanned: result.NamespacesScanned,
			NamespacesSkipped: result.NamespacesSkipped,
		}
		for _, svc := range result.SortedServices() {
			ports := make([]int32, 0, len(svc.Ports))
			for _, p := range svc.Ports {
				ports = append(ports, p.Port)
			}
			out.Services = append(out.Services, serviceEntry{
				Namespace:      svc.Namespace,
				Name:           svc.Name,
				Type:           string(svc.Type),
				Ports:          ports,
				EndpointStatus: string(svc.Status),
				IsFrontend:     svc.Frontend,
				EndpointCount:  len(svc.Endpoints),
			})
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))

	case "table":
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAMESPACE\tSERVICE\tTYPE\tPORTS\tSTATUS\tFRONTEND\tENDPOINTS")
		for _, svc := range result.SortedServices() {
			ports := ""
			for i, p := range svc.Ports {
				if i > 0 {
					ports += ","
				}
				ports += fmt.Sprintf("%d", p.Port)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%v\t%d\n",
				svc.Namespace, svc.Name, svc.Type, ports, svc.Status, svc.Frontend, len(svc.Endpoints))
		}
		w.Flush()

	default:
		fmt.Printf("Total Services: %d\n", result.TotalServices)
		fmt.Printf("Healthy: %d\n", result.HealthyServices)
		fmt.Printf("Unhealthy: %d\n", result.UnhealthyServices)
		fmt.Printf("Frontend: %d\n", result.FrontendServices)
		fmt.Printf("Namespaces: %d\n", len(result.NamespacesScanned))
	}
	return nil
}
