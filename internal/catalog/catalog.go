// Package catalog is the durable store of recording metadata. Entries are
// created exactly once when a run finalizes and destroyed only by explicit
// removal.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrDuplicateID marks an append whose id already exists in the catalog.
// Id generation upstream should make this impossible; hitting it is a logic
// error, not a transient failure.
var ErrDuplicateID = errors.New("catalog: duplicate id")

// PersistenceError reports that the backing store rejected a write. The
// failed write leaves no partial entry visible; the caller may retry or
// discard the now-orphaned artifact.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("catalog: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Entry describes one recorded artifact. CreatedAt is set at assembly time
// and never mutated; ContentRef is an opaque locator resolvable by the blob
// store.
type Entry struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	ContentRef      string    `json:"content_ref"`
	CreatedAt       time.Time `json:"created_at"`
	DurationSeconds int       `json:"duration_seconds"`
	SessionID       string    `json:"session_id"`
}

// Catalog backends persist entries. All mutations are serialized relative to
// each other; readers see either the pre- or post-mutation state, never a
// partial write.
type Catalog interface {
	// Append persists e atomically. A rejected write is a *PersistenceError.
	Append(ctx context.Context, e Entry) error
	// List returns all persisted entries in no particular order; ordering is
	// the query engine's concern.
	List(ctx context.Context) ([]Entry, error)
	// Remove deletes the entry with that id and returns it so the caller can
	// release the artifact content. Removing an absent id returns ok=false
	// and no error.
	Remove(ctx context.Context, id string) (removed Entry, ok bool, err error)
}
