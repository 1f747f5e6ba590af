//go:build integration

package catalog

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func setupTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	p, err := NewPostgres(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	t.Cleanup(func() {
		p.Close()
	})
	return p
}

func TestIntegration_AppendListRemove(t *testing.T) {
	p := setupTestPostgres(t)
	ctx := context.Background()

	e := Entry{
		ID:              uuid.NewString(),
		Filename:        "integration.bin",
		ContentRef:      "artifacts/integration.bin",
		CreatedAt:       time.Now().UTC().Truncate(time.Microsecond),
		DurationSeconds: 42,
		SessionID:       "integration-" + uuid.NewString()[:8],
	}

	if err := p.Append(ctx, e); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	t.Cleanup(func() {
		p.Remove(ctx, e.ID)
	})

	entries, err := p.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var found *Entry
	for i := range entries {
		if entries[i].ID == e.ID {
			found = &entries[i]
			break
		}
	}
	if found == nil {
		t.Fatal("appended entry not listed")
	}
	if found.Filename != e.Filename || found.ContentRef != e.ContentRef ||
		found.DurationSeconds != e.DurationSeconds || found.SessionID != e.SessionID {
		t.Errorf("entry fields changed through persistence: got %+v, want %+v", *found, e)
	}
	if !found.CreatedAt.Equal(e.CreatedAt) {
		t.Errorf("created_at changed: got %v, want %v", found.CreatedAt, e.CreatedAt)
	}

	// Duplicate id is rejected and leaves the original intact.
	err = p.Append(ctx, e)
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}

	removed, ok, err := p.Remove(ctx, e.ID)
	if err != nil || !ok {
		t.Fatalf("Remove failed: ok=%v err=%v", ok, err)
	}
	if removed.ContentRef != e.ContentRef {
		t.Errorf("removed entry missing content ref: %+v", removed)
	}

	_, ok, err = p.Remove(ctx, e.ID)
	if err != nil {
		t.Errorf("second Remove errored: %v", err)
	}
	if ok {
		t.Error("second Remove reported an entry")
	}
}
