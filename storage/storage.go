// Package storage defines the object-store contract the narration pipeline
// uses as its sole persistence mechanism. Artifacts pass between stages as
// named objects; there is no other shared state.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound reports that a named object does not exist in the store.
var ErrNotFound = errors.New("storage: object not found")

// Store is a bucket-scoped object store. Implementations must be safe for
// concurrent use; the pipeline reuses one handle across invocations.
type Store interface {
	// Write creates or replaces an object.
	Write(ctx context.Context, name string, data []byte, contentType string) error
	// Read returns the full object contents, or ErrNotFound.
	Read(ctx context.Context, name string) ([]byte, error)
	// Exists reports whether the object is visible in the store.
	Exists(ctx context.Context, name string) (bool, error)
	// List returns the names of all objects under the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes an object. Deleting a missing object returns ErrNotFound.
	Delete(ctx context.Context, name string) error
	// DeleteBatch removes the named objects, stopping at the first failure.
	DeleteBatch(ctx context.Context, names []string) error
	// MakePublic grants unauthenticated read access to an object.
	MakePublic(ctx context.Context, name string) error
}

// URI renders the gs:// address of an object, the form external engines
// accept for bucket-resident inputs and outputs.
func URI(bucket, name string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, name)
}
