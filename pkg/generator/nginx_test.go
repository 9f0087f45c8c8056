package generator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porthole-sh/porthole/pkg/config"
	"github.com/porthole-sh/porthole/pkg/model"
)

func TestNginxLocations(t *testing.T) {
	result := model.NewDiscoveryResult([]*model.Service{
		healthyService("default", "webapp", model.Port{Name: "http", Port: 80, Protocol: "TCP"}),
		{
			Name:      "broken",
			Namespace: "default",
			ClusterIP: "10.96.0.11",
			Ports:     []model.Port{{Port: 7070, Protocol: "TCP"}},
			Status:    model.EndpointStatusUnhealthy,
		},
	}, []string{"default"}, nil)

	locations := NewNginxGenerator(config.Default()).Locations(result)

	require.Len(t, locations, 1, "services without ready endpoints must be skipped")
	assert.Equal(t, "/default_webapp_80", locations[0].Path)
	assert.Equal(t, "webapp.default.svc.cluster.local:80", locations[0].ServiceDNS)
}

func TestNginxLocationsDeduplicated(t *testing.T) {
	svc := healthyService("default", "webapp",
		model.Port{Name: "a", Port: 80, Protocol: "TCP"},
		model.Port{Name: "b", Port: 80, Protocol: "TCP"},
	)
	result := model.NewDiscoveryResult([]*model.Service{svc}, []string{"default"}, nil)

	locations := NewNginxGenerator(config.Default()).Locations(result)
	assert.Len(t, locations, 1)
}

func TestNginxPathSanitization(t *testing.T) {
	svc := healthyService("team.a", "web_app", model.Port{Port: 80, Protocol: "TCP"})
	result := model.NewDiscoveryResult([]*model.Service{svc}, []string{"team.a"}, nil)

	locations := NewNginxGenerator(config.Default()).Locations(result)
	require.Len(t, locations, 1)
	assert.Equal(t, "/team_a_web_app_80", locations[0].Path)
	assert.NotContains(t, locations[0].Path, ".")
	assert.NotContains(t, locations[0].Path, "__")
}

func TestNginxGenerateAndValidate(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()

	gen := NewNginxGenerator(cfg)
	result := model.NewDiscoveryResult([]*model.Service{
		healthyService("default", "webapp", model.Port{Name: "http", Port: 80, Protocol: "TCP"}),
	}, []string{"default"}, nil)

	path, err := gen.Generate(result)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "locations.conf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "location /default_webapp_80/ {")
	assert.Contains(t, content, "proxy_pass http://webapp.default.svc.cluster.local:80/;")
	assert.Equal(t, strings.Count(content, "{"), strings.Count(content, "}"))

	assert.NoError(t, gen.Validate(path))
}

func TestNginxGenerateEmptyResult(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()

	gen := NewNginxGenerator(cfg)
	path, err := gen.Generate(model.NewDiscoveryResult(nil, nil, nil))
	require.NoError(t, err)

	// An empty cycle still renders a valid, empty locations file.
	assert.NoError(t, gen.Validate(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "location /")
}

func TestNginxValidateMismatchedBraces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.conf")
	require.NoError(t, os.WriteFile(path, []byte("location / {\n"), 0o644))

	assert.Error(t, NewNginxGenerator(config.Default()).Validate(path))
}
