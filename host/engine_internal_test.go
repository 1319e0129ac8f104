package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/reglet-dev/embedc/domain/entities"
	domainerrors "github.com/reglet-dev/embedc/domain/errors"
	"github.com/reglet-dev/embedc/domain/ports"
	"github.com/reglet-dev/embedc/env"
	"github.com/reglet-dev/embedc/infrastructure/dynlib"
	"github.com/reglet-dev/embedc/internal/testutil"
	"github.com/reglet-dev/embedc/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, req ports.CommandRequest) (*ports.CommandResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*ports.CommandResult)
	return res, args.Error(1)
}

func isProbe() any {
	return mock.MatchedBy(func(req ports.CommandRequest) bool {
		return len(req.Args) == 1 && req.Args[0] == "--version"
	})
}

func isBuild() any {
	return mock.MatchedBy(func(req ports.CommandRequest) bool {
		return len(req.Args) > 1
	})
}

// writeArtifact creates the -o operand of a build request.
func writeArtifact(args mock.Arguments) {
	req := args.Get(1).(ports.CommandRequest)
	for i, a := range req.Args {
		if a == "-o" && i+1 < len(req.Args) {
			_ = os.WriteFile(req.Args[i+1], []byte("lib"), 0o644)
		}
	}
}

type stubLoader struct {
	opened []string
	order  []string
}

func (l *stubLoader) Open(path string) (ports.Library, error) {
	l.opened = append(l.opened, path)
	return &recordingLibrary{path: path, order: &l.order}, nil
}

func newTestEngine(t *testing.T, runner ports.CommandRunner, loader ports.LibraryLoader, mutate ...func(*entities.Config)) *Engine {
	t.Helper()
	cfg := entities.DefaultConfig()
	cfg.Candidates = []string{"cc"}
	cfg.Libs = nil
	cfg.TempDir = t.TempDir()
	for _, m := range mutate {
		m(&cfg)
	}
	e, err := NewEngine(WithConfig(cfg), WithRunner(runner), WithLoader(loader), WithLogger(log.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := entities.DefaultConfig()
	cfg.LogLevel = "loud"

	_, err := NewEngine(WithConfig(cfg))

	var cfgErr *domainerrors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "log_level", cfgErr.Field)
}

func TestNewEngine_CacheDirOverride(t *testing.T) {
	dir := t.TempDir()
	e, err := NewEngine(WithConfig(entities.DefaultConfig()), WithCacheDir(dir), WithLogger(log.Discard()))
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, dir, e.Config().CacheDir)
}

func TestEngine_ParseErrorSkipsToolchain(t *testing.T) {
	runner := &mockRunner{}
	e := newTestEngine(t, runner, &stubLoader{})

	_, err := e.Inline(context.Background(), "IMPORT int\nreturn 1;", env.New(nil))

	var parseErr *domainerrors.ParseError
	require.True(t, errors.As(err, &parseErr))
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestEngine_ToolchainNotFound(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, isProbe()).Return(nil, errors.New("executable file not found"))
	e := newTestEngine(t, runner, &stubLoader{})

	_, err := e.Embed(context.Background(), "int one() { return 1; }")

	var notFound *domainerrors.ToolchainNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, []string{"cc"}, notFound.Candidates)
}

func TestEngine_CompileErrorSkipsLoad(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, isProbe()).Return(&ports.CommandResult{Output: "cc 1.0"}, nil)
	runner.On("Run", mock.Anything, isBuild()).Return(&ports.CommandResult{Output: "error: boom", ExitCode: 1}, nil)
	loader := &stubLoader{}
	e := newTestEngine(t, runner, loader)

	_, err := e.Embed(context.Background(), "xxxint y;")

	var compileErr *domainerrors.CompileError
	require.True(t, errors.As(err, &compileErr))
	assert.Equal(t, "error: boom", compileErr.Output)
	assert.Empty(t, loader.opened)
}

func TestEngine_CloseTearsDownTransients(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, isProbe()).Return(&ports.CommandResult{Output: "cc 1.0"}, nil)
	runner.On("Run", mock.Anything, isBuild()).Run(writeArtifact).Return(&ports.CommandResult{}, nil)
	loader := &stubLoader{}
	e := newTestEngine(t, runner, loader)

	lib, err := e.Embed(context.Background(), "int one() { return 1; }")
	require.NoError(t, err)
	assert.FileExists(t, lib.Path())
	assert.Equal(t, 3, e.teardown.Pending())

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	assert.Equal(t, []string{"unload " + lib.Path()}, loader.order)
	assert.NoFileExists(t, lib.Path())
	assert.NoDirExists(t, filepath.Dir(lib.Path()))

	_, err = e.Embed(context.Background(), "int one() { return 1; }")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = e.LoadPrecompiled(context.Background(), "x.go")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEngine_NilEnvironment(t *testing.T) {
	e := newTestEngine(t, &mockRunner{}, &stubLoader{})

	_, err := e.Inline(context.Background(), "return 1;", nil)

	var envErr *domainerrors.EnvironmentError
	require.True(t, errors.As(err, &envErr))
	assert.Equal(t, "range", envErr.Op)
}

const twoFragments = "package sample\n\n" +
	"func run() {\n" +
	"\tembedc.EmbedPrecompiled(`int one() { return 1; }`)\n" +
	"\tembedc.InlinePrecompiled(`CC clang\nreturn 2;`, nil)\n" +
	"}\n"

func TestEngine_PrecompiledBuildsOncePerEngine(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, mock.MatchedBy(func(req ports.CommandRequest) bool {
		return req.Command == "clang" && len(req.Args) > 1
	})).Run(writeArtifact).Return(&ports.CommandResult{}, nil).Once()
	loader := &stubLoader{}
	e := newTestEngine(t, runner, loader, func(cfg *entities.Config) { cfg.KeepSources = false })

	src := testutil.WriteFile(t, t.TempDir(), "sample.go", twoFragments)

	lib, err := e.LoadPrecompiled(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, src+".cpp"+dynlib.Ext(), lib.Path())
	assert.NoFileExists(t, src+".cpp")

	_, err = e.RunPrecompiled(context.Background(), src, "return 0;", env.New(nil))
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = e.LoadPrecompiled(context.Background(), src)
	require.NoError(t, err)
	assert.Len(t, loader.opened, 1)
	runner.AssertExpectations(t)

	entry, ok := e.registry.Lookup(src)
	require.True(t, ok)
	units := entry.Units()
	require.Len(t, units, 2)
	assert.Equal(t, "func_1", units[0].FuncName)
	assert.Equal(t, "func_2", units[1].FuncName)
	assert.False(t, units[1].ImportAll)
}

func TestEngine_PrecompiledWithoutFragments(t *testing.T) {
	e := newTestEngine(t, &mockRunner{}, &stubLoader{})
	src := testutil.WriteFile(t, t.TempDir(), "empty.go", "package empty\n")

	_, err := e.LoadPrecompiled(context.Background(), src)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

const oneFragment = "package sample\n\n" +
	"func run() {\n" +
	"\tembedc.InlinePrecompiled(`CC clang\nreturn 1;`, nil)\n" +
	"}\n"

func isClangBuild() any {
	return mock.MatchedBy(func(req ports.CommandRequest) bool {
		return req.Command == "clang" && len(req.Args) > 1
	})
}

func TestEngine_SharedArtifactMappedOnce(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, isClangBuild()).Run(writeArtifact).Return(&ports.CommandResult{}, nil).Once()
	src := testutil.WriteFile(t, t.TempDir(), "shared.go", oneFragment)
	testutil.Touch(t, src, time.Now().Add(-2*time.Hour))
	artifact := src + ".cpp" + dynlib.Ext()

	first, second := &stubLoader{}, &stubLoader{}
	a := newTestEngine(t, runner, first)
	b := newTestEngine(t, runner, second)

	_, err := a.LoadPrecompiled(context.Background(), src)
	require.NoError(t, err)
	_, err = b.LoadPrecompiled(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, []string{artifact}, first.opened)
	assert.Equal(t, []string{artifact}, second.opened)
	runner.AssertExpectations(t)

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
	mappedArtifacts.mu.Lock()
	_, still := mappedArtifacts.open[artifact]
	mappedArtifacts.mu.Unlock()
	assert.False(t, still)
}

func TestEngine_RebuiltArtifactLoadsFromSnapshot(t *testing.T) {
	src := testutil.WriteFile(t, t.TempDir(), "rebuilt.go", oneFragment)
	testutil.Touch(t, src, time.Now().Add(-2*time.Hour))
	artifact := src + ".cpp" + dynlib.Ext()

	runner := &mockRunner{}
	runner.On("Run", mock.Anything, isClangBuild()).Run(writeArtifact).Return(&ports.CommandResult{}, nil).Once()
	runner.On("Run", mock.Anything, isClangBuild()).Run(func(args mock.Arguments) {
		writeArtifact(args)
		future := time.Now().Add(time.Hour)
		_ = os.Chtimes(artifact, future, future)
	}).Return(&ports.CommandResult{}, nil).Once()

	oldLoader, newLoader := &stubLoader{}, &stubLoader{}
	holder := newTestEngine(t, runner, oldLoader)
	_, err := holder.LoadPrecompiled(context.Background(), src)
	require.NoError(t, err)

	// The source is now newer than the artifact the holder still maps.
	testutil.Touch(t, artifact, time.Now().Add(-3*time.Hour))
	rebuilder := newTestEngine(t, runner, newLoader)
	_, err = rebuilder.LoadPrecompiled(context.Background(), src)
	require.NoError(t, err)
	runner.AssertExpectations(t)

	require.Len(t, newLoader.opened, 1)
	snapshot := newLoader.opened[0]
	assert.NotEqual(t, artifact, snapshot)
	assert.Equal(t, filepath.Base(artifact), filepath.Base(snapshot))
	assert.Equal(t, rebuilder.Config().TempDir, filepath.Dir(filepath.Dir(snapshot)))
	assert.FileExists(t, snapshot)

	require.NoError(t, rebuilder.Close())
	assert.NoDirExists(t, filepath.Dir(snapshot))
	assert.FileExists(t, artifact)
}
