package dynlib

import "unsafe"

// CString is a NUL-terminated copy of s. The caller keeps the slice alive
// for as long as native code may read it.
func CString(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}

// Addr is the address of the first element of b, or 0 when b is empty.
func Addr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// GoString copies the NUL-terminated string at p. A zero p yields "".
func GoString(p uintptr) string {
	if p == 0 {
		return ""
	}
	return bytePtrToString((*byte)(unsafe.Pointer(p))) //nolint:govet // p is a native char*
}
