package host

import (
	"testing"

	"github.com/reglet-dev/embedc/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scanSource = `package sample

import "github.com/reglet-dev/embedc"

var code = "return 3;"

func run(e *Engine, environment any) {
	embedc.InlinePrecompiled(` + "`return 1;`" + `, environment)
	embedc.InlinePrecompiled(code, environment)
	lib, _ := e.EmbedPrecompiled(ctx, ` + "`\nint twice(int v) { return 2 * v; }\n`" + `)
	InlinePrecompiled("return\t2;", environment)
	embedc.Inline("return 4;", environment)
	_ = lib
}
`

func TestScanFile(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "sample.go", scanSource)

	frags, err := ScanFile(path)
	require.NoError(t, err)
	require.Len(t, frags, 3)

	assert.Equal(t, []string{"return 1;"}, frags[0].Lines)
	assert.Equal(t, 8, frags[0].Line)
	assert.True(t, frags[0].Inline)
	assert.Equal(t, path, frags[0].File)

	assert.Equal(t, []string{"", "int twice(int v) { return 2 * v; }", ""}, frags[1].Lines)
	assert.Equal(t, 10, frags[1].Line)
	assert.False(t, frags[1].Inline)

	assert.Equal(t, []string{"return\t2;"}, frags[2].Lines)
	assert.True(t, frags[2].Inline)
}

func TestScanFile_Errors(t *testing.T) {
	_, err := ScanFile("/nonexistent/sample.go")
	assert.Error(t, err)

	path := testutil.WriteFile(t, t.TempDir(), "broken.go", "package broken\nfunc {")
	_, err = ScanFile(path)
	assert.Error(t, err)
}

func TestFragmentKey(t *testing.T) {
	assert.Equal(t, fragmentKey("a\r\nb\n"), fragmentKey("a\nb\n"))
	assert.NotEqual(t, fragmentKey("a\nb"), fragmentKey("a\nb\n"))
}
