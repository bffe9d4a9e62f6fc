// Package id declares the identifier generation contract used when minting
// session ids. Implementations live in subpackages.
package id

// Generator mints unique string identifiers.
type Generator interface {
	NewID() (string, error)
}
