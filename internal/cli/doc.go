// Package cli wires configuration into stores, collaborators and the engine for cmd/arbor.
package cli
