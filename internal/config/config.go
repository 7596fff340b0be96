package config

import (
	"os"

	"github.com/conduitio/conduit/pkg/foundation/cerrors"
	"gopkg.in/yaml.v3"
)

// Backends understood by the CLI.
const (
	BackendNative   = "native"
	BackendExported = "exported"
	BackendImported = "imported"
)

// Config holds the stringsum CLI configuration.
type Config struct {
	// Backend selects which implementation computes the sum.
	Backend string        `yaml:"backend"`
	Modules ModulesConfig `yaml:"modules"`
	Batch   BatchConfig   `yaml:"batch"`
	Logging LoggingConfig `yaml:"logging"`
}

// ModulesConfig points at the wasm guests.
type ModulesConfig struct {
	Exported string `yaml:"exported"` // reactor built from exported/module
	Imported string `yaml:"imported"` // command module built from imported/module
}

// BatchConfig configures the batch command.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Backend: BackendNative,
		Modules: ModulesConfig{
			Exported: "exported/module/module.wasm",
			Imported: "imported/module/module.wasm",
		},
		Batch: BatchConfig{
			Concurrency: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the file at path on top of Default. An empty path returns the
// defaults. The result is not validated, callers apply their overrides first
// and then call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, cerrors.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the CLI cannot work with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendNative:
	case BackendExported:
		if c.Modules.Exported == "" {
			return cerrors.New("modules.exported is required for the exported backend")
		}
	case BackendImported:
		if c.Modules.Imported == "" {
			return cerrors.New("modules.imported is required for the imported backend")
		}
	default:
		return cerrors.Errorf("unknown backend %q", c.Backend)
	}

	if c.Batch.Concurrency < 1 {
		return cerrors.Errorf("batch.concurrency must be positive, got %d", c.Batch.Concurrency)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return cerrors.Errorf("unknown log level %q", c.Logging.Level)
	}
	return nil
}
