package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked for in the working directory when no
// path is given.
const DefaultConfigFile = "cloudboot.yaml"

// Load reads the configuration file. An empty path falls back to
// DefaultConfigFile; if that does not exist either, an empty Config is
// returned so a launch can be driven by flags alone. The token always
// comes from the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{Token: os.Getenv("HCLOUD_TOKEN")}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied config path
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.Token = os.Getenv("HCLOUD_TOKEN")

	return cfg, nil
}
