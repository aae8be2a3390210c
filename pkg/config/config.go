package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ozgb/blockprop/pkg/core"
)

// TokenEnv is checked for a Loki bearer token after config and secrets files.
const TokenEnv = "BLOCKPROP_LOKI_TOKEN"

// Config represents a blockprop.yaml configuration file.
type Config struct {
	Loki    Loki     `yaml:"loki"`
	Nodes   []string `yaml:"nodes"`
	Label   string   `yaml:"label"`
	Markers Markers  `yaml:"markers"`
	Layouts []string `yaml:"layouts"`
}

// Loki describes the log-aggregation backend to download from.
type Loki struct {
	URL     string            `yaml:"url"`
	Token   string            `yaml:"token,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// Markers holds the marker patterns used by the extractor. Each pattern is a
// regular expression with one capture group matching the block height.
type Markers struct {
	Seal   string `yaml:"seal"`
	Import string `yaml:"import"`
}

// DefaultNodes is the standard 20-node benchmark fleet.
var DefaultNodes = []string{
	"alice", "bob", "charlie", "dave", "eve",
	"ferdie", "george", "henry", "iris", "jack",
	"kate", "leo", "mike", "nina", "oliver",
	"paul", "quinn", "rita", "sam", "tom",
}

// Default returns a config with all defaults filled in.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads a YAML config file and fills in defaults for absent fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Loki.URL == "" {
		c.Loki.URL = "http://localhost:3100"
	}
	if c.Loki.Token == "" {
		c.Loki.Token = os.Getenv(TokenEnv)
	}
	if len(c.Nodes) == 0 {
		c.Nodes = append([]string(nil), DefaultNodes...)
	}
	if c.Label == "" {
		c.Label = "host"
	}
	if c.Markers.Seal == "" {
		c.Markers.Seal = core.DefaultSealPattern
	}
	if c.Markers.Import == "" {
		c.Markers.Import = core.DefaultImportPattern
	}
	if len(c.Layouts) == 0 {
		c.Layouts = append([]string(nil), core.DefaultLayouts...)
	}
}

// ApplySecrets overrides backend settings with values from a secrets file.
func (c *Config) ApplySecrets(s *Secrets) {
	if s == nil {
		return
	}
	if s.Grafana.URL != "" {
		c.Loki.URL = s.Grafana.URL
	}
	if s.Grafana.Token != "" {
		c.Loki.Token = s.Grafana.Token
	}
}
