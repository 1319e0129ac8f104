//go:build windows

package dynlib

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// WCharSize is sizeof(wchar_t): UTF-16 on Windows.
const WCharSize = 2

func bytePtrToString(p *byte) string {
	return windows.BytePtrToString(p)
}

// WideString encodes s as a NUL-terminated wchar_t buffer. The returned
// value owns the memory behind the address.
func WideString(s string) (keep any, addr uintptr) {
	buf, err := windows.UTF16FromString(s)
	if err != nil {
		// s holds a NUL; native code would stop reading there anyway.
		buf, _ = windows.UTF16FromString(s[:indexNUL(s)])
	}
	return buf, uintptr(unsafe.Pointer(&buf[0]))
}

// GoWideString copies the NUL-terminated wchar_t string at p.
func GoWideString(p uintptr) string {
	if p == 0 {
		return ""
	}
	return windows.UTF16PtrToString((*uint16)(unsafe.Pointer(p))) //nolint:govet // p is a native wchar_t*
}

func indexNUL(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return i
		}
	}
	return len(s)
}
