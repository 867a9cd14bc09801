// Package storage defines the blob store that sorted runs are kept in.
//
// Backends live in subpackages: local (one file per blob), memory (an
// ordered in-memory index) and pebble (chunked blobs in a Pebble LSM).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrNotFound    = errors.New("storage: blob not found")
	ErrInvalidName = errors.New("storage: invalid blob name")
)

// Store holds named blobs. A blob becomes visible to Open and List once
// the writer returned by Create is closed. Creating an existing name
// replaces it.
type Store interface {
	// Create starts writing the blob name.
	Create(ctx context.Context, name string) (io.WriteCloser, error)

	// Open reads the blob name.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Remove deletes the blob name.
	Remove(ctx context.Context, name string) error

	// List returns the names of all blobs in ascending order.
	List(ctx context.Context) ([]string, error)
}

// ValidateName rejects names that cannot be stored by every backend.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
