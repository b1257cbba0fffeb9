// Package archive stores backtest run reports in cold storage.
package archive

import (
	"context"
	"errors"
)

// ErrInvalidPath is returned for keys that are empty or escape the archive
// root.
var ErrInvalidPath = errors.New("invalid archive path")

// Storage is a cold storage backend addressed by slash-separated keys.
type Storage interface {
	// Write stores data at the given path, replacing any previous object.
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path.
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths under the prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
