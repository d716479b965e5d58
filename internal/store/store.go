// Package store defines the file store contract shared by all backends.
//
// The store is the only cross-worker mutable state in the system. Backends
// differ in reach: the memory backend is private to one process and serves the
// shared-pool concurrency mode; the fs and s3 backends live on a medium every
// worker process can reach and serve the isolated-pool mode; the badger
// backend adds single-process persistence.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound reports a GET or DELETE against an absent name.
var ErrNotFound = errors.New("store: file not found")

// Store is the file registry contract.
//
// Put must be atomic with respect to concurrent Put/Delete/Get on the same
// name: a reader never observes a torn write. Operations on distinct names
// are unordered with respect to each other. List returns names in insertion
// order where the backing medium can provide it; media that cannot (a shared
// directory, an object bucket) document their own ordering.
type Store interface {
	List(ctx context.Context) ([]string, error)
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
	Close() error
}

// ValidateName rejects names that could escape the store namespace. The
// protocol decoder performs the same check; backends repeat it so they stay
// safe when driven directly.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("store: empty file name")
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return fmt.Errorf("store: illegal file name %q", name)
	}
	return nil
}
