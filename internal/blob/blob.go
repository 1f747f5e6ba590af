// Package blob stores artifact content behind opaque locators. Catalog
// entries reference artifacts only through these refs; nothing outside this
// package interprets them.
package blob

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("blob: not found")

type Store interface {
	// Put writes data under key and returns the opaque ref for it.
	Put(ctx context.Context, key string, data []byte) (string, error)
	// Get resolves a ref back to its content.
	Get(ctx context.Context, ref string) ([]byte, error)
	// Remove releases the content behind ref. Removing an absent ref is a
	// no-op so teardown stays idempotent.
	Remove(ctx context.Context, ref string) error
}
