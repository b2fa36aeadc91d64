package main

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ctlConfig holds the defaults agentgatectl reads from
// ~/.agentgatectl.yaml before applying flag and environment overrides.
type ctlConfig struct {
	Server   string `yaml:"server"`
	Username string `yaml:"username"`
}

// loadCtlConfig reads ~/.agentgatectl.yaml if present. A missing file is
// not an error — every field just stays at its zero value and the caller's
// flag/env defaults apply instead.
func loadCtlConfig() (ctlConfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return ctlConfig{}, nil
	}
	data, err := os.ReadFile(filepath.Join(home, ".agentgatectl.yaml"))
	if os.IsNotExist(err) {
		return ctlConfig{}, nil
	}
	if err != nil {
		return ctlConfig{}, err
	}
	var cfg ctlConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ctlConfig{}, err
	}
	return cfg, nil
}
