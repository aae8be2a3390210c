package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozgb/blockprop/pkg/core"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_FillsDefaults(t *testing.T) {
	path := writeTemp(t, "blockprop.yaml", `
loki:
  url: https://loki.example.com
nodes:
  - alice
  - bob
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://loki.example.com", c.Loki.URL)
	assert.Equal(t, []string{"alice", "bob"}, c.Nodes)
	assert.Equal(t, "host", c.Label)
	assert.Equal(t, core.DefaultSealPattern, c.Markers.Seal)
	assert.Equal(t, core.DefaultImportPattern, c.Markers.Import)
	assert.Equal(t, core.DefaultLayouts, c.Layouts)
	assert.Empty(t, Validate(c))
}

func TestDefault_FleetList(t *testing.T) {
	c := Default()
	assert.Len(t, c.Nodes, 20)
	assert.Equal(t, "alice", c.Nodes[0])
	assert.Equal(t, "tom", c.Nodes[19])
	assert.Equal(t, "http://localhost:3100", c.Loki.URL)
}

func TestLoad_TokenFromEnv(t *testing.T) {
	t.Setenv(TokenEnv, "env-token")
	path := writeTemp(t, "blockprop.yaml", "loki:\n  url: https://loki.example.com\n")
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", c.Loki.Token)
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeTemp(t, "blockprop.yaml", "loki: [not: a: mapping")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	c := Default()
	c.Loki.URL = "not a url"
	c.Nodes = []string{"alice", "alice", ""}
	c.Label = ""
	c.Markers.Seal = `Pre-sealed (\d+) extra (\d+)`

	errs := Validate(c)
	require.NotEmpty(t, errs)

	var joined string
	for _, e := range errs {
		joined += e.Error() + "\n"
	}
	assert.Contains(t, joined, "not an absolute URL")
	assert.Contains(t, joined, "duplicate node")
	assert.Contains(t, joined, "must not be empty")
	assert.Contains(t, joined, "label is required")
	assert.Contains(t, joined, "markers.seal")
}

func TestLoadSecrets_PlainJSON(t *testing.T) {
	path := writeTemp(t, "performance.json", `{"grafana": {"url": "https://grafana.example.com/loki", "token": "s3cret"}}`)
	s, err := LoadSecrets(path)
	require.NoError(t, err)
	assert.Equal(t, "https://grafana.example.com/loki", s.Grafana.URL)
	assert.Equal(t, "s3cret", s.Grafana.Token)

	c := Default()
	c.ApplySecrets(s)
	assert.Equal(t, "https://grafana.example.com/loki", c.Loki.URL)
	assert.Equal(t, "s3cret", c.Loki.Token)
}

func TestLoadSecrets_Missing(t *testing.T) {
	_, err := LoadSecrets(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
