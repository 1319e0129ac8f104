// Package host runs the embedding pipeline for a Go program.
//
// An Engine parses native fragments, compiles them with the C/C++ toolchain,
// loads the resulting dynamic libraries and calls into them with values taken
// from a binding environment. Transient fragments are rebuilt on every call
// and removed when the engine closes. Precompiled fragments are collected
// from their Go source file, built into one library next to it and rebuilt
// only when the source changes.
package host
