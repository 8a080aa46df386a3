// Package storage defines the blob-store abstraction for raw page artifacts.
// Concrete providers live in subpackages named after their backend.
package storage

import "context"

// NoOp discards artifacts; used when raw HTML persistence is disabled.
type NoOp struct{}

// PutObject drops the data and returns an empty URI.
func (NoOp) PutObject(_ context.Context, _ string, _ string, _ []byte) (string, error) {
	return "", nil
}
