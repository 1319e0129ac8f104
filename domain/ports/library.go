package ports

// Library is an open dynamic library handle.
type Library interface {
	// Path is the file the library was loaded from.
	Path() string

	// Symbol resolves an exported symbol address.
	Symbol(name string) (uintptr, error)

	// Bind points fnPtr, a pointer to a Go func variable, at the exported
	// function name.
	Bind(name string, fnPtr any) error

	// Close unloads the library. Symbols resolved from it become invalid.
	Close() error
}

// LibraryLoader opens dynamic libraries.
type LibraryLoader interface {
	Open(path string) (Library, error)
}
