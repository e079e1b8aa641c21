package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Template renders the default config as kind "toml" or "yaml".
func Template(kind string) (string, error) {
	cfg := Default()
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "toml":
		out, err := toml.Marshal(cfg)
		if err != nil {
			return "", fmt.Errorf("render toml template: %w", err)
		}
		return string(out), nil
	case "yaml", "yml":
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return "", fmt.Errorf("render yaml template: %w", err)
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
