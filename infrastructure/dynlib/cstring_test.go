package dynlib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCString_RoundTrip(t *testing.T) {
	b := CString("hello")
	require.Len(t, b, 6)
	assert.Equal(t, byte(0), b[5])
	assert.Equal(t, "hello", GoString(Addr(b)))
}

func TestGoString_Null(t *testing.T) {
	assert.Equal(t, "", GoString(0))
	assert.Equal(t, "", GoWideString(0))
	assert.Equal(t, uintptr(0), Addr(nil))
}

func TestWideString_RoundTrip(t *testing.T) {
	for _, s := range []string{"", "ascii", "héllo wörld", "日本語"} {
		keep, addr := WideString(s)
		require.NotNil(t, keep)
		assert.Equal(t, s, GoWideString(addr), s)
	}
}

func TestExt(t *testing.T) {
	assert.Contains(t, []string{".so", ".dll", ".dylib"}, Ext())
}
