package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var ErrUnsupportedFormat = errors.New("unsupported config format")

// Load reads a YAML or TOML file on top of DefaultOptions. Keys missing from
// the file keep their defaults.
func Load(path string) (Options, error) {
	opts := DefaultOptions()

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("reading config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return opts, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &opts); err != nil {
			return opts, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return opts, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return opts, nil
}

// Save writes opts as YAML.
func Save(path string, opts Options) error {
	data, err := yaml.Marshal(opts)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
