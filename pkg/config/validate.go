package config

import (
	"fmt"
	"net/url"

	"github.com/ozgb/blockprop/pkg/core"
)

// Validate checks the config for structural correctness.
func Validate(c *Config) []error {
	var errs []error

	if c.Loki.URL == "" {
		errs = append(errs, fmt.Errorf("loki.url is required"))
	} else if u, err := url.Parse(c.Loki.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("loki.url %q is not an absolute URL", c.Loki.URL))
	}

	if len(c.Nodes) == 0 {
		errs = append(errs, fmt.Errorf("at least one node is required"))
	}
	seen := make(map[string]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if n == "" {
			errs = append(errs, fmt.Errorf("node names must not be empty"))
			continue
		}
		if seen[n] {
			errs = append(errs, fmt.Errorf("duplicate node %q", n))
		}
		seen[n] = true
	}

	if c.Label == "" {
		errs = append(errs, fmt.Errorf("label is required"))
	}

	if _, err := core.NewMarker(c.Markers.Seal); err != nil {
		errs = append(errs, fmt.Errorf("markers.seal: %w", err))
	}
	if _, err := core.NewMarker(c.Markers.Import); err != nil {
		errs = append(errs, fmt.Errorf("markers.import: %w", err))
	}

	for _, layout := range c.Layouts {
		if layout == "" {
			errs = append(errs, fmt.Errorf("layouts must not contain empty entries"))
		}
	}

	return errs
}
