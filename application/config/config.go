// Package config loads the engine configuration from an optional YAML file
// and EMBEDC_* environment variables, and validates the result.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/reglet-dev/embedc/domain/entities"
	domainerrors "github.com/reglet-dev/embedc/domain/errors"
	"github.com/reglet-dev/embedc/infrastructure/parser"
	"github.com/xyproto/env/v2"
)

// Environment variables overriding file and default settings.
const (
	EnvToolchain    = "EMBEDC_CC"
	EnvCacheDir     = "EMBEDC_CACHE_DIR"
	EnvTempDir      = "EMBEDC_TEMP_DIR"
	EnvKeepSources  = "EMBEDC_KEEP_SOURCES"
	EnvLogLevel     = "EMBEDC_LOG_LEVEL"
	EnvBuildTimeout = "EMBEDC_BUILD_TIMEOUT"
)

// validate is a package-level singleton; building a validator is expensive.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their YAML keys.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (entities.Config, error) {
	cfg := entities.DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return entities.Config{}, fmt.Errorf("reading config: %w", err)
		}
		parsed, err := parser.NewYamlConfigParser().Parse(data, cfg)
		if err != nil {
			return entities.Config{}, err
		}
		cfg = *parsed
	}
	if err := ApplyEnv(&cfg); err != nil {
		return entities.Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return entities.Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any EMBEDC_* variables that are set.
func ApplyEnv(cfg *entities.Config) error {
	// env caches the environment on first use; take a fresh snapshot.
	env.Load()
	if env.Has(EnvToolchain) {
		cfg.Toolchain = env.Str(EnvToolchain)
	}
	if env.Has(EnvCacheDir) {
		cfg.CacheDir = env.Str(EnvCacheDir)
	}
	if env.Has(EnvTempDir) {
		cfg.TempDir = env.Str(EnvTempDir)
	}
	if env.Has(EnvKeepSources) {
		cfg.KeepSources = env.Bool(EnvKeepSources)
	}
	if env.Has(EnvLogLevel) {
		cfg.LogLevel = strings.ToLower(env.Str(EnvLogLevel))
	}
	if env.Has(EnvBuildTimeout) {
		d, err := time.ParseDuration(env.Str(EnvBuildTimeout))
		if err != nil {
			return &domainerrors.ConfigError{Field: "build_timeout", Err: err}
		}
		cfg.BuildTimeout = d
	}
	return nil
}

// Validate checks cfg against its validation tags.
func Validate(cfg entities.Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &domainerrors.ConfigError{Field: verrs[0].Field(), Err: err}
	}
	return &domainerrors.ConfigError{Err: err}
}

// Schema returns the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
		FieldNameTag:   "yaml",
	}
	schema := reflector.Reflect(&entities.Config{})

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return out, nil
}
