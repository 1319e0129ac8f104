package entities

import "time"

// Artifact is a dynamic library produced by the toolchain.
type Artifact struct {
	Path      string
	ModTime   time.Time
	Source    string // owning source identity
	Transient bool

	// Dir is the private build directory of a transient artifact.
	Dir string
}
