package config

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
)

// Secrets is the JSON secrets file shared with the deployment tooling.
type Secrets struct {
	Grafana struct {
		URL   string `json:"url"`
		Token string `json:"token"`
	} `json:"grafana"`
}

// LoadSecrets reads a secrets file. It first tries to decrypt it with
// `sops -d`; if sops is unavailable or fails, the file is read as plain JSON.
func LoadSecrets(path string) (*Secrets, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("secrets file: %w", err)
	}

	var data []byte
	out, err := exec.Command("sops", "-d", path).Output()
	if err == nil {
		data = out
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read secrets: %w", err)
		}
	}

	var s Secrets
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse secrets %s: %w", path, err)
	}
	return &s, nil
}
