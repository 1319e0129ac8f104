package entities

import (
	"runtime"
	"time"
)

// Config controls toolchain selection, build flags and artifact placement.
type Config struct {
	// Toolchain forces a compiler command; empty means auto-detect.
	Toolchain string `yaml:"toolchain" json:"toolchain,omitempty" jsonschema:"description=Compiler command; empty selects the first working candidate"`

	// Candidates are probed with --version, in order, when Toolchain is empty.
	Candidates []string `yaml:"candidates" json:"candidates,omitempty" validate:"required_without=Toolchain,dive,required"`

	// Flags precede "-o <artifact> <tu>" on the compiler command line.
	Flags []string `yaml:"flags" json:"flags,omitempty"`

	// Libs follow the translation unit on the compiler command line.
	Libs []string `yaml:"libs" json:"libs,omitempty"`

	// CacheDir holds precompiled artifacts; empty places them next to the source.
	CacheDir string `yaml:"cache_dir" json:"cache_dir,omitempty"`

	// TempDir holds transient translation units and artifacts.
	TempDir string `yaml:"temp_dir" json:"temp_dir,omitempty"`

	// KeepSources leaves generated translation units of precompiled files on disk.
	KeepSources bool `yaml:"keep_sources" json:"keep_sources,omitempty"`

	// BuildTimeout bounds a single compiler run.
	BuildTimeout time.Duration `yaml:"build_timeout" json:"build_timeout,omitempty" validate:"gte=0"`

	LogLevel string `yaml:"log_level" json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Candidates:   []string{"gcc", "clang", "cc"},
		Flags:        []string{"-fPIC", "-shared"},
		Libs:         defaultLibs(),
		BuildTimeout: 2 * time.Minute,
		KeepSources:  true,
		LogLevel:     "info",
	}
}

// defaultLibs links the C++ runtime where gcc is the usual driver.
func defaultLibs() []string {
	if runtime.GOOS == "linux" {
		return []string{"-lstdc++"}
	}
	return nil
}
