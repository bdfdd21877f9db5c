package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"

	"mcphub/internal/lockfile"
	"mcphub/pkg/logging"
)

// isYAMLFile checks if a file path is a YAML file.
func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadFile reads, decodes and validates the configuration at path. YAML is used
// for .yaml/.yml files and JSON otherwise. Every failure is a ConfigurationError.
func LoadFile(path string) (HubConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		ce := NewConfigurationError(path, ErrorTypeIO, "cannot read configuration file", err)
		if errors.Is(err, fs.ErrNotExist) {
			ce.Suggestions = []string{
				"Check the --config path",
				`Create the file with an empty server table: {"mcpServers": {}}`,
			}
		}
		return HubConfig{}, ce
	}

	cfg, err := Parse(data, isYAMLFile(path))
	if err != nil {
		if ce, ok := AsConfigurationError(err); ok {
			ce.FilePath = path
			ce.FileName = filepath.Base(path)
			return HubConfig{}, ce
		}
		return HubConfig{}, err
	}

	logging.Debug("Config", "Loaded %d server(s) from %s", len(cfg.MCPServers), path)
	return cfg, nil
}

// Parse decodes and validates a configuration document.
func Parse(data []byte, isYAML bool) (HubConfig, error) {
	var cfg HubConfig
	var err error
	if isYAML {
		err = yaml.UnmarshalStrict(data, &cfg)
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	}
	if err != nil {
		ce := NewConfigurationError("", ErrorTypeParse, "malformed configuration document", err)
		ce.Suggestions = []string{"The document must be an object with an \"mcpServers\" map"}
		return HubConfig{}, ce
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = map[string]ServerConfig{}
	}

	if err := cfg.Validate(); err != nil {
		return HubConfig{}, NewConfigurationError("", ErrorTypeValidation, "invalid configuration", err)
	}
	return cfg, nil
}

// WriteFile atomically writes cfg to path in the format implied by its extension.
func WriteFile(path string, cfg HubConfig) error {
	var data []byte
	var err error
	if isYAMLFile(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create configuration directory: %w", err)
	}
	if err := lockfile.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write configuration %s: %w", path, err)
	}
	return nil
}
