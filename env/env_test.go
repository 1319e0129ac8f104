package env

import (
	"testing"

	"github.com/reglet-dev/embedc/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironment_LocalShadowsGlobal(t *testing.T) {
	e := New(nil).Global("x", 1).Local("x", 2)

	v, scope, ok := e.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, entities.ScopeLocal, scope)

	g, ok := e.Get(entities.ScopeGlobal, "x")
	require.True(t, ok)
	assert.Equal(t, 1, g)
}

func TestEnvironment_Set(t *testing.T) {
	e := New(nil).Global("g", 1)

	require.NoError(t, e.Set(entities.ScopeGlobal, "g", 42))
	require.NoError(t, e.Set(entities.ScopeLocal, "l", "text"))

	assert.Equal(t, 42, e.Value("g"))
	s, ok := e.GetString("l")
	assert.True(t, ok)
	assert.Equal(t, "text", s)

	assert.Error(t, e.Set(entities.Scope(7), "bad", 1))
}

func TestEnvironment_NamesKeepOrder(t *testing.T) {
	e := New(nil).Local("b", 1).Local("a", 2).Local("c", 3).Local("a", 4)
	assert.Equal(t, []string{"b", "a", "c"}, e.Names(entities.ScopeLocal))
	assert.Empty(t, e.Names(entities.ScopeGlobal))
}

func TestEnvironment_SharedGlobals(t *testing.T) {
	globals := NewScope().Bind("counter", 1)
	a := New(globals)
	b := New(globals)

	require.NoError(t, a.Set(entities.ScopeGlobal, "counter", 2))
	v, ok := b.GetInt("counter")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Same(t, globals, b.Globals())
}

func TestEnvironment_Getters(t *testing.T) {
	e := New(nil).Local("i32", int32(5)).Local("f", float32(1.5)).Local("s", 3)

	i, ok := e.GetInt("i32")
	assert.True(t, ok)
	assert.Equal(t, 5, i)

	f, ok := e.GetFloat("f")
	assert.True(t, ok)
	assert.InDelta(t, 1.5, f, 1e-9)

	_, ok = e.GetString("s")
	assert.False(t, ok)

	_, ok = e.GetInt("missing")
	assert.False(t, ok)
}
