package host

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/reglet-dev/embedc/domain/ports"
)

// The dynamic loader hands back the existing mapping when a path that is
// already open is opened again, even if the file was rebuilt in between.
// mappedArtifacts records which version of each precompiled artifact is
// mapped in this process so a newer build is loaded from a snapshot.
var mappedArtifacts = &mappings{open: make(map[string]*mapping)}

type mapping struct {
	modTime time.Time
	refs    int
}

type mappings struct {
	open map[string]*mapping
	mu   sync.Mutex
}

// acquire claims path at modTime. It reports false when a different
// version of path is still mapped.
func (m *mappings) acquire(path string, modTime time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.open[path]; ok {
		if !cur.modTime.Equal(modTime) {
			return false
		}
		cur.refs++
		return true
	}
	m.open[path] = &mapping{modTime: modTime, refs: 1}
	return true
}

func (m *mappings) release(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.open[path]; ok {
		cur.refs--
		if cur.refs <= 0 {
			delete(m.open, path)
		}
	}
}

// openArtifact loads a precompiled artifact and queues its teardown. A
// version that differs from the one already mapped is copied into a private
// directory under the engine's temp dir and loaded from there.
func (e *Engine) openArtifact(artifact string) (ports.Library, error) {
	info, err := os.Stat(artifact)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", artifact, err)
	}

	if mappedArtifacts.acquire(artifact, info.ModTime()) {
		lib, err := e.loader.Open(artifact)
		if err != nil {
			mappedArtifacts.release(artifact)
			return nil, err
		}
		e.teardown.Do("release", artifact, func() error {
			mappedArtifacts.release(artifact)
			return nil
		})
		e.teardown.Unload(lib)
		return lib, nil
	}

	dir, snapshot, err := e.snapshot(artifact)
	if err != nil {
		return nil, err
	}
	e.logger.Info("artifact rebuilt while mapped, loading snapshot", "artifact", artifact, "snapshot", snapshot)
	e.teardown.Remove(dir)
	e.teardown.Remove(snapshot)
	lib, err := e.loader.Open(snapshot)
	if err != nil {
		return nil, err
	}
	e.teardown.Unload(lib)
	return lib, nil
}

func (e *Engine) snapshot(artifact string) (dir, path string, err error) {
	base := e.config.TempDir
	if base == "" {
		base = os.TempDir()
	}
	dir, err = os.MkdirTemp(base, "embedc-")
	if err != nil {
		return "", "", fmt.Errorf("creating snapshot directory: %w", err)
	}
	path = filepath.Join(dir, filepath.Base(artifact))
	if err := copyFile(artifact, path); err != nil {
		_ = os.RemoveAll(dir)
		return "", "", fmt.Errorf("snapshotting %s: %w", artifact, err)
	}
	return dir, path, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
