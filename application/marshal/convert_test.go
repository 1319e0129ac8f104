package marshal

import (
	"math"
	"reflect"
	"testing"

	"github.com/reglet-dev/embedc/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNativeType(t *testing.T) {
	tests := []struct {
		tag  entities.TypeTag
		want reflect.Kind
	}{
		{entities.TypeInt, reflect.Int32},
		{entities.TypeUInt, reflect.Uint32},
		{entities.TypeLongLong, reflect.Int64},
		{entities.TypeChar, reflect.Int8},
		{entities.TypeUByte, reflect.Uint8},
		{entities.TypeShort, reflect.Int16},
		{entities.TypeSizeT, reflect.Uintptr},
		{entities.TypeFloat, reflect.Float32},
		{entities.TypeDouble, reflect.Float64},
		{entities.TypeBool, reflect.Bool},
		{entities.TypeString, reflect.Uintptr},
		{entities.TypeUString, reflect.Uintptr},
		{entities.TypePointer, reflect.Uintptr},
	}
	for _, tt := range tests {
		t.Run(tt.tag.String(), func(t *testing.T) {
			got := nativeType(tt.tag)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind())
		})
	}
	assert.Nil(t, nativeType(entities.TypeVoid))
	assert.Nil(t, nativeType(entities.TypeUnknown))
}

func TestToNative_Numbers(t *testing.T) {
	a := &arena{}

	v, err := toNative(5, entities.TypeInt, a)
	require.NoError(t, err)
	assert.Equal(t, int32(5), v.Interface())

	v, err = toNative(uint8(200), entities.TypeLongLong, a)
	require.NoError(t, err)
	assert.Equal(t, int64(200), v.Interface())

	v, err = toNative(3, entities.TypeDouble, a)
	require.NoError(t, err)
	assert.Equal(t, float64(3), v.Interface())

	v, err = toNative(1.5, entities.TypeFloat, a)
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), v.Interface())

	v, err = toNative(true, entities.TypeInt, a)
	require.NoError(t, err)
	assert.Equal(t, int32(1), v.Interface())

	v, err = toNative(2, entities.TypeBool, a)
	require.NoError(t, err)
	assert.Equal(t, true, v.Interface())
}

func TestToNative_Errors(t *testing.T) {
	a := &arena{}
	tests := []struct {
		name  string
		value any
		tag   entities.TypeTag
		want  error
	}{
		{"string to int", "xyz", entities.TypeInt, errNotInteger},
		{"float to int", 1.5, entities.TypeInt, errNotInteger},
		{"overflow", math.MaxInt64, entities.TypeInt, errOverflow},
		{"negative unsigned", -1, entities.TypeUInt, errOverflow},
		{"string to double", "1.0", entities.TypeDouble, errNotNumber},
		{"string to bool", "yes", entities.TypeBool, errNotBool},
		{"int to string", 42, entities.TypeString, errNotText},
		{"nil int", nil, entities.TypeInt, errNil},
		{"float to pointer", 1.0, entities.TypePointer, errNotPointer},
		{"void", 1, entities.TypeVoid, errUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := toNative(tt.value, tt.tag, a)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestToNative_Text(t *testing.T) {
	a := &arena{}

	v, err := toNative("hi", entities.TypeString, a)
	require.NoError(t, err)
	assert.Equal(t, "hi", decodeText(uintptr(v.Uint()), entities.TypeString))

	v, err = toNative([]byte("bytes"), entities.TypeString, a)
	require.NoError(t, err)
	assert.Equal(t, "bytes", decodeText(uintptr(v.Uint()), entities.TypeString))

	v, err = toNative("wide ü", entities.TypeUString, a)
	require.NoError(t, err)
	assert.Equal(t, "wide ü", decodeText(uintptr(v.Uint()), entities.TypeUString))

	v, err = toNative(nil, entities.TypeString, a)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v.Uint())

	assert.Len(t, a.keep, 3)
}

func TestToNative_Pointer(t *testing.T) {
	a := &arena{}

	v, err := toNative(uintptr(0x1000), entities.TypePointer, a)
	require.NoError(t, err)
	assert.Equal(t, uintptr(0x1000), v.Interface())

	v, err = toNative(nil, entities.TypePointer, a)
	require.NoError(t, err)
	assert.Equal(t, uintptr(0), v.Interface())
}

func TestFromNative(t *testing.T) {
	assert.Equal(t, -3, fromNative(reflect.ValueOf(int16(-3)), entities.TypeShort))
	assert.Equal(t, uint(7), fromNative(reflect.ValueOf(uint32(7)), entities.TypeUInt))
	assert.Equal(t, 2.5, fromNative(reflect.ValueOf(float32(2.5)), entities.TypeFloat))
	assert.Equal(t, true, fromNative(reflect.ValueOf(true), entities.TypeBool))
	assert.Equal(t, uintptr(9), fromNative(reflect.ValueOf(uintptr(9)), entities.TypePointer))
	assert.Equal(t, "", fromNative(reflect.ValueOf(uintptr(0)), entities.TypeString))
	assert.Nil(t, fromNative(reflect.Value{}, entities.TypeVoid))
}

func TestRestore(t *testing.T) {
	type celsius float64

	assert.Equal(t, 7, restore(5, 7))
	assert.Equal(t, int32(7), restore(int32(5), 7))
	assert.Equal(t, uint16(7), restore(uint16(5), 7))
	assert.Equal(t, int64(7), restore(int64(1), uint(7)))
	assert.Equal(t, celsius(2.5), restore(celsius(1), 2.5))
	assert.Equal(t, []byte("new"), restore([]byte("old"), "new"))
	assert.Equal(t, "text", restore(42, "text"))
	assert.Equal(t, 7, restore(1.5, 7))
	assert.Equal(t, 7, restore(nil, 7))
}

func TestAdapt(t *testing.T) {
	v, ok := adapt(3, reflect.TypeOf(float64(0)))
	assert.True(t, ok)
	assert.Equal(t, 3.0, v.Interface())

	v, ok = adapt("s", reflect.TypeOf((*any)(nil)).Elem())
	assert.True(t, ok)
	assert.Equal(t, "s", v.Interface())

	v, ok = adapt(nil, reflect.TypeOf(""))
	assert.True(t, ok)
	assert.Equal(t, "", v.Interface())

	_, ok = adapt("s", reflect.TypeOf(0))
	assert.False(t, ok)
}
