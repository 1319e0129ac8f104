// Package testutil provides helpers for tests that drive a real toolchain.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/reglet-dev/embedc/domain/entities"
	"github.com/reglet-dev/embedc/infrastructure/exec"
	"github.com/reglet-dev/embedc/infrastructure/toolchain"
	"github.com/reglet-dev/embedc/log"
	"github.com/stretchr/testify/require"
)

var (
	detectOnce sync.Once
	detected   string
	detectErr  error
)

// RequireToolchain returns the compiler an Engine would detect or skips the test. It also
// skips in short mode, since every native build takes a compiler run.
func RequireToolchain(t testing.TB) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping native build in short mode")
	}
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" && runtime.GOOS != "freebsd" {
		t.Skip("native builds are exercised on unix only")
	}
	detectOnce.Do(func() {
		d := toolchain.NewDriver(exec.NewRunner(), entities.DefaultConfig(), toolchain.WithLogger(log.Discard()))
		detected, detectErr = d.Detect(context.Background())
	})
	if detectErr != nil {
		t.Skipf("no C++ toolchain: %v", detectErr)
	}
	return detected
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// Touch sets the modification time of path.
func Touch(t testing.TB, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

// ModTime returns the modification time of path.
func ModTime(t testing.TB, path string) time.Time {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.ModTime()
}
