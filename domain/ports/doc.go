// Package ports defines the interfaces the embedding pipeline depends on.
// Infrastructure adapters (process runner, dynamic loader) and host-side
// collaborators (the binding environment) implement them.
package ports
