//go:build !windows

package dynlib

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// WCharSize is sizeof(wchar_t): UTF-32 on unix platforms.
const WCharSize = 4

func bytePtrToString(p *byte) string {
	return unix.BytePtrToString(p)
}

// WideString encodes s as a NUL-terminated wchar_t buffer. The returned
// value owns the memory behind the address.
func WideString(s string) (keep any, addr uintptr) {
	runes := []rune(s)
	buf := make([]int32, len(runes)+1)
	for i, r := range runes {
		buf[i] = r
	}
	return buf, uintptr(unsafe.Pointer(&buf[0]))
}

// GoWideString copies the NUL-terminated wchar_t string at p.
func GoWideString(p uintptr) string {
	if p == 0 {
		return ""
	}
	var runes []rune
	for ptr := unsafe.Pointer(p); ; ptr = unsafe.Add(ptr, WCharSize) { //nolint:govet // p is a native wchar_t*
		r := *(*int32)(ptr)
		if r == 0 {
			break
		}
		runes = append(runes, r)
	}
	return string(runes)
}
