package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/reglet-dev/embedc/domain/entities"
	domainerrors "github.com/reglet-dev/embedc/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvToolchain, EnvCacheDir, EnvTempDir, EnvKeepSources, EnvLogLevel, EnvBuildTimeout} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, entities.DefaultConfig(), cfg)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "embedc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("toolchain: clang\nkeep_sources: false\nlog_level: debug\n"), 0o644))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "clang", cfg.Toolchain)
	assert.False(t, cfg.KeepSources)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "embedc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("toolchain: clang\n"), 0o644))

	t.Setenv(EnvToolchain, "gcc-14")
	t.Setenv(EnvCacheDir, "/tmp/embedc-cache")
	t.Setenv(EnvKeepSources, "false")
	t.Setenv(EnvLogLevel, "WARN")
	t.Setenv(EnvBuildTimeout, "45s")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "gcc-14", cfg.Toolchain)
	assert.Equal(t, "/tmp/embedc-cache", cfg.CacheDir)
	assert.False(t, cfg.KeepSources)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 45*time.Second, cfg.BuildTimeout)
}

func TestLoad_SeesLaterEnvChanges(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Toolchain)

	t.Setenv(EnvToolchain, "clang-19")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "clang-19", cfg.Toolchain)

	require.NoError(t, os.Unsetenv(EnvToolchain))
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Toolchain)
}

func TestLoad_BadTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBuildTimeout, "soon")

	_, err := Load("")

	var cfgErr *domainerrors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "build_timeout", cfgErr.Field)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*entities.Config)
		wantField string
	}{
		{"defaults", func(*entities.Config) {}, ""},
		{"bad level", func(c *entities.Config) { c.LogLevel = "verbose" }, "log_level"},
		{"negative timeout", func(c *entities.Config) { c.BuildTimeout = -time.Second }, "build_timeout"},
		{"no compiler at all", func(c *entities.Config) { c.Candidates = nil }, "candidates"},
		{"empty candidate", func(c *entities.Config) { c.Candidates = []string{""} }, "candidates[0]"},
		{"toolchain without candidates", func(c *entities.Config) { c.Toolchain = "tcc"; c.Candidates = nil }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := entities.DefaultConfig()
			tt.mutate(&cfg)

			err := Validate(cfg)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *domainerrors.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.wantField, cfgErr.Field)
		})
	}
}

func TestSchema(t *testing.T) {
	out, err := Schema()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))

	props, ok := decoded["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"toolchain", "candidates", "flags", "libs", "cache_dir", "temp_dir", "keep_sources", "build_timeout", "log_level"} {
		assert.Contains(t, props, key)
	}
}
