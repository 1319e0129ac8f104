package embedc

import (
	appconfig "github.com/reglet-dev/embedc/application/config"
	"github.com/reglet-dev/embedc/domain/entities"
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return entities.DefaultConfig()
}

// LoadConfig reads a YAML configuration file, applies EMBEDC_* environment
// overrides and validates the result. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	return appconfig.Load(path)
}

// ValidateConfig checks cfg, returning a ConfigError naming the first
// offending field.
func ValidateConfig(cfg Config) error {
	return appconfig.Validate(cfg)
}

// ConfigSchema returns the JSON schema of the configuration file.
func ConfigSchema() ([]byte, error) {
	return appconfig.Schema()
}
