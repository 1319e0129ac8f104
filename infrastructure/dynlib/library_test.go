package dynlib

import (
	"errors"
	"path/filepath"
	"testing"

	domainerrors "github.com/reglet-dev/embedc/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing"+Ext())

	_, err := Open(path)

	var loadErr *domainerrors.LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, path, loadErr.Path)
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := Loader{}.Open(filepath.Join(t.TempDir(), "nope"+Ext()))
	assert.Error(t, err)
}

func TestRegister_RejectsNonPointer(t *testing.T) {
	err := Register(func() {}, 1)
	assert.Error(t, err)
}

func TestLibrary_SymbolAfterClose(t *testing.T) {
	lib := &Library{path: "closed" + Ext(), closed: true}

	_, err := lib.Symbol("func")

	var symErr *domainerrors.SymbolError
	require.True(t, errors.As(err, &symErr))
	assert.ErrorIs(t, err, errClosed)
	assert.NoError(t, lib.Close())
}
