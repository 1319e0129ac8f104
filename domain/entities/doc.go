// Package entities provides the core domain types of the embedding pipeline:
// code units parsed from fragments, bindings exchanged with the host, compiled
// artifacts, the closed native type table and structured error details.
package entities
