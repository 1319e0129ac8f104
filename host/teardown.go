package host

import (
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/reglet-dev/embedc/domain/ports"
)

type teardownAction struct {
	run    func() error
	kind   string
	target string
}

// Teardown runs queued cleanup exactly once, newest first: unloading
// libraries and deleting temporary files. Failures are logged, never returned.
type Teardown struct {
	logger  *slog.Logger
	actions []teardownAction
	once    sync.Once
	mu      sync.Mutex
}

// NewTeardown creates an empty Teardown.
func NewTeardown(logger *slog.Logger) *Teardown {
	if logger == nil {
		logger = slog.Default()
	}
	return &Teardown{logger: logger}
}

// Remove queues path for deletion.
func (t *Teardown) Remove(path string) {
	t.push(teardownAction{kind: "remove", target: path, run: func() error {
		err := os.Remove(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}})
}

// Unload queues lib for unloading.
func (t *Teardown) Unload(lib ports.Library) {
	t.push(teardownAction{kind: "unload", target: lib.Path(), run: lib.Close})
}

// Do queues an arbitrary action. kind and target label it in logs.
func (t *Teardown) Do(kind, target string, fn func() error) {
	t.push(teardownAction{kind: kind, target: target, run: fn})
}

func (t *Teardown) push(a teardownAction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.actions = append(t.actions, a)
}

// Pending reports the number of queued actions.
func (t *Teardown) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.actions)
}

// Run executes the queued actions in reverse order. Only the first call
// has any effect.
func (t *Teardown) Run() {
	t.once.Do(func() {
		t.mu.Lock()
		actions := t.actions
		t.actions = nil
		t.mu.Unlock()

		for i := len(actions) - 1; i >= 0; i-- {
			a := actions[i]
			if err := a.run(); err != nil {
				t.logger.Warn("teardown failed", "action", a.kind, "target", a.target, "error", err)
			}
		}
	})
}
