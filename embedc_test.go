package embedc

import (
	"context"
	"errors"
	"testing"

	"github.com/reglet-dev/embedc/domain/entities"
	domainerrors "github.com/reglet-dev/embedc/domain/errors"
	"github.com/reglet-dev/embedc/host"
	"github.com/reglet-dev/embedc/internal/testutil"
	"github.com/reglet-dev/embedc/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useEngine installs a default engine that keeps every artifact under
// temporary directories.
func useEngine(t *testing.T) {
	t.Helper()
	testutil.RequireToolchain(t)
	cfg := DefaultConfig()
	cfg.TempDir = t.TempDir()
	e, err := host.NewEngine(host.WithConfig(cfg), host.WithCacheDir(t.TempDir()), host.WithLogger(log.Discard()))
	require.NoError(t, err)
	SetDefault(e)
	t.Cleanup(func() { require.NoError(t, Shutdown()) })
}

func TestDefault_Lifecycle(t *testing.T) {
	cfg := DefaultConfig()
	first, err := host.NewEngine(host.WithConfig(cfg), host.WithLogger(log.Discard()))
	require.NoError(t, err)
	SetDefault(first)

	got, err := Default()
	require.NoError(t, err)
	assert.Same(t, first, got)

	require.NoError(t, Shutdown())
	require.NoError(t, Shutdown())

	_, err = first.Embed(context.Background(), "int one() { return 1; }")
	assert.ErrorIs(t, err, host.ErrClosed)

	fresh, err := Default()
	require.NoError(t, err)
	assert.NotSame(t, first, fresh)
	require.NoError(t, Shutdown())
}

func TestInline(t *testing.T) {
	useEngine(t)

	got, err := Inline("return 15;", NewEnvironment(nil))
	require.NoError(t, err)
	assert.Equal(t, 15, got)

	environment := NewEnvironment(nil).Local("x", 5)
	_, err = C("IMPORT int &x\nx = 7;", environment)
	require.NoError(t, err)
	x, _ := environment.GetInt("x")
	assert.Equal(t, 7, x)
}

func TestInline_ParseError(t *testing.T) {
	useEngine(t)

	_, err := Inline("IMPORT int\nreturn 1;", NewEnvironment(nil))

	var parseErr *domainerrors.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, parseErr.File, "embedc_test.go")
	assert.Equal(t, "parse", ToErrorDetail(err).Type)
}

func TestEmbed(t *testing.T) {
	useEngine(t)

	lib, err := Embed("double half(double v) { return v / 2; }")
	require.NoError(t, err)

	var half func(float64) float64
	require.NoError(t, lib.Bind("half", &half))
	assert.InDelta(t, 1.25, half(2.5), 1e-9)
}

func TestPrecompiled(t *testing.T) {
	useEngine(t)

	environment := NewEnvironment(nil).Local("frozen", Tuple{1, 2}).Local("n", 2)
	got, err := InlinePrecompiled(`
IMPORT int[] frozen
IMPORT int n
int sum = 0;
for (int i = 0; i < n; i++) { sum += frozen[i]; frozen[i] = 0; }
return sum;
`, environment)
	require.NoError(t, err)
	assert.Equal(t, 3, got)
	frozen, _ := environment.Get(entities.ScopeLocal, "frozen")
	assert.Equal(t, Tuple{1, 2}, frozen)

	lib, err := EmbedPrecompiled(`int triple(int v) { return 3 * v; }`)
	require.NoError(t, err)
	var triple func(int32) int32
	require.NoError(t, lib.Bind("triple", &triple))
	assert.Equal(t, int32(12), triple(4))
}
