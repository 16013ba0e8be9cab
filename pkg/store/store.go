// Package store persists snapshot blobs by name so cached metrics survive
// process restarts. Backends: local filesystem (default) and Redis.
package store

import "context"

// Store is a key-value-by-name persistence layer for snapshot blobs.
type Store interface {
	// Read returns the stored bytes, or (nil, nil) if nothing is stored
	// under that name.
	Read(ctx context.Context, name string) ([]byte, error)
	// Write durably replaces the bytes stored under name.
	Write(ctx context.Context, name string, data []byte) error
}
