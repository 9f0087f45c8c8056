package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// fileConfig is the on-disk configuration shape. Key names match the
// porthole-config.json format; the same keys work from a YAML file.
type fileConfig struct {
	SkipNamespaces   []string `json:"namespaces-to-skip" yaml:"namespaces-to-skip"`
	FrontendPatterns []string `json:"frontend-pattern-matching" yaml:"frontend-pattern-matching"`
	PortalTitle      *string  `json:"portal-title" yaml:"portal-title"`
	RefreshInterval  *int     `json:"refresh-interval" yaml:"refresh-interval"`
	IncludeHeadless  *bool    `json:"include-headless-services" yaml:"include-headless-services"`
	EnableHTTPCheck  *bool    `json:"enable-http-checking" yaml:"enable-http-checking"`
	HTTPTimeout      *int     `json:"http-timeout" yaml:"http-timeout"`
	HTTPUserAgent    *string  `json:"http-user-agent" yaml:"http-user-agent"`
}

// Load reads a JSON or YAML configuration file (selected by extension) on top
// of the defaults, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		var fc fileConfig
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, &fc)
		default:
			err = json.Unmarshal(data, &fc)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}

		fc.apply(cfg)
		klog.V(2).Infof("Loaded configuration from %s", path)
	}

	applyEnv(cfg)
	return cfg, nil
}

func (fc *fileConfig) apply(cfg *Config) {
	if fc.SkipNamespaces != nil {
		cfg.SkipNamespaces = fc.SkipNamespaces
	}
	if fc.FrontendPatterns != nil {
		cfg.FrontendPatterns = fc.FrontendPatterns
	}
	if fc.PortalTitle != nil {
		cfg.PortalTitle = *fc.PortalTitle
	}
	if fc.RefreshInterval != nil {
		cfg.RefreshInterval = time.Duration(*fc.RefreshInterval) * time.Second
	}
	if fc.IncludeHeadless != nil {
		cfg.IncludeHeadless = *fc.IncludeHeadless
	}
	if fc.EnableHTTPCheck != nil {
		cfg.EnableHTTPCheck = *fc.EnableHTTPCheck
	}
	if fc.HTTPTimeout != nil {
		cfg.HTTPTimeout = time.Duration(*fc.HTTPTimeout) * time.Second
	}
	if fc.HTTPUserAgent != nil {
		cfg.HTTPUserAgent = *fc.HTTPUserAgent
	}
}

// applyEnv layers environment variables over file and default values.
func applyEnv(cfg *Config) {
	if v := os.Getenv("KUBECONFIG"); v != "" {
		cfg.KubeconfigPath = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("SERVICE_JSON_FILE"); v != "" {
		cfg.ServiceJSONFile = v
	}
	if v := os.Getenv("LOCATIONS_CONFIG_FILE"); v != "" {
		cfg.LocationsConfigFile = v
	}
	if v := os.Getenv("INCLUDE_HEADLESS_SERVICES"); v != "" {
		cfg.IncludeHeadless = parseBool(v, cfg.IncludeHeadless)
	}
	if v := os.Getenv("ENABLE_HTTP_CHECKING"); v != "" {
		cfg.EnableHTTPCheck = parseBool(v, cfg.EnableHTTPCheck)
	}
	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.HTTPTimeout = time.Duration(secs) * time.Second
		} else {
			klog.Warningf("Ignoring invalid HTTP_TIMEOUT value %q", v)
		}
	}
	if v := os.Getenv("HTTP_USER_AGENT"); v != "" {
		cfg.HTTPUserAgent = v
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		klog.Warningf("Ignoring invalid boolean value %q", v)
		return fallback
	}
	return b
}
