package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Render encodes cfg as TOML with the same keys LoadDaemonConfig reads.
func Render(cfg DaemonConfig) ([]byte, error) {
	out, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("render daemon config: %w", err)
	}
	return out, nil
}

// WriteTemplate writes the default daemon config to path.
func WriteTemplate(path string, overwrite bool) error {
	out, err := Render(DefaultDaemonConfig())
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, out, 0o600)
}
