// Package reloader watches the generated output directory and reloads nginx
// when a config file changes. It is meant to run as a sidecar next to the
// nginx container that serves the generated locations.
package reloader

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"
)

// Watcher reloads nginx after validated changes to *.conf files in dir.
type Watcher struct {
	dir string

	// runCommand is swappable for tests.
	runCommand func(name string, args ...string) error
}

// NewWatcher creates a Watcher for the given directory.
func NewWatcher(dir string) *Watcher {
	return &Watcher{
		dir: dir,
		runCommand: func(name string, args ...string) error {
			out, err := exec.Command(name, args...).CombinedOutput()
			if err != nil {
				return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
			}
			return nil
		},
	}
}

// Run blocks watching the directory until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	klog.Infof("Watching %s for nginx config changes", w.dir)

	for {
		select {
		case <-ctx.Done():
			klog.Info("Stopping nginx config watcher")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".conf") {
				continue
			}
			klog.Infof("Config change detected: %s", event.Name)
			w.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			klog.Errorf("Filesystem watcher error: %v", err)
		}
	}
}

// reload tests the nginx configuration and reloads only when the test passes.
func (w *Watcher) reload() {
	if err := w.runCommand("nginx", "-t"); err != nil {
		klog.Errorf("Configuration test failed, not reloading: %v", err)
		return
	}
	if err := w.runCommand("nginx", "-s", "reload"); err != nil {
		klog.Errorf("Failed to reload nginx: %v", err)
		return
	}
	klog.Info("Configuration reloaded successfully")
}
