package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"golang.org/x/text/language"

	"github.com/MikeSquared-Agency/reel/internal/blob"
	"github.com/MikeSquared-Agency/reel/internal/capture"
	"github.com/MikeSquared-Agency/reel/internal/catalog"
	"github.com/MikeSquared-Agency/reel/internal/events"
	"github.com/MikeSquared-Agency/reel/internal/query"
	"github.com/MikeSquared-Agency/reel/internal/recorder"
)

type fakeScheduler struct {
	fns []func()
}

func (s *fakeScheduler) Subscribe(fn func()) func() {
	s.fns = append(s.fns, fn)
	return func() { s.fns = nil }
}

func (s *fakeScheduler) Tick() {
	for _, fn := range s.fns {
		fn()
	}
}

type stubDevice struct {
	track *capture.Track
}

func (d *stubDevice) Open(_ context.Context, _ capture.Constraints) ([]*capture.Track, error) {
	return []*capture.Track{d.track}, nil
}

type fakeBus struct {
	mu       sync.Mutex
	subjects []string
}

func (b *fakeBus) Publish(subject string, _ any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subjects = append(b.subjects, subject)
	return nil
}

func (b *fakeBus) has(subject string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subjects {
		if s == subject {
			return true
		}
	}
	return false
}

type fixture struct {
	p     *Pipeline
	sched *fakeScheduler
	track *capture.Track
	blobs *blob.Memory
	cat   *catalog.Memory
	bus   *fakeBus
}

func newFixture(t *testing.T, catalogLimit int) *fixture {
	t.Helper()
	f := &fixture{
		sched: &fakeScheduler{},
		track: capture.NewTrack(capture.TrackVideo, nil),
		blobs: blob.NewMemory(),
		cat:   catalog.NewMemory(catalogLimit),
		bus:   &fakeBus{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.p = New(&stubDevice{track: f.track}, f.sched, f.blobs, f.cat, query.New(language.English), f.bus, logger)
	return f
}

func TestPipeline_CaptureRecordPersist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	s, err := f.p.AcquireSession(ctx, capture.Constraints{Video: true})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !f.bus.has(events.SubjectSessionAcquired) {
		t.Error("expected session.acquired event")
	}

	if err := f.p.StartRecording(s.ID()); err != nil {
		t.Fatalf("start: %v", err)
	}

	f.track.Write([]byte("one-"))
	f.sched.Tick()
	f.track.Write([]byte("two"))
	f.sched.Tick()

	entry, err := f.p.StopRecording(ctx, s.ID())
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if entry.DurationSeconds != 2 {
		t.Errorf("expected duration 2, got %d", entry.DurationSeconds)
	}
	if entry.SessionID != s.ID() {
		t.Errorf("expected session id %s, got %s", s.ID(), entry.SessionID)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("expected created_at to be set at assembly")
	}

	// Entry is durable and the content ref resolves to the ordered artifact.
	entries, _ := f.cat.List(ctx)
	if len(entries) != 1 || entries[0].ID != entry.ID {
		t.Fatalf("expected entry in catalog, got %+v", entries)
	}
	data, err := f.blobs.Get(ctx, entry.ContentRef)
	if err != nil {
		t.Fatalf("artifact not stored: %v", err)
	}
	if !bytes.Equal(data, []byte("one-two")) {
		t.Errorf("artifact content wrong: %q", data)
	}

	if !f.bus.has(events.SubjectRecordingCompleted) {
		t.Error("expected recording.completed event")
	}
}

func TestPipeline_RejectedAppendReclaimsArtifact(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	// Fill the catalog to capacity.
	if err := f.cat.Append(ctx, catalog.Entry{ID: "existing"}); err != nil {
		t.Fatalf("seed append: %v", err)
	}

	s, _ := f.p.AcquireSession(ctx, capture.Constraints{Video: true})
	if err := f.p.StartRecording(s.ID()); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.track.Write([]byte("data"))
	f.sched.Tick()

	_, err := f.p.StopRecording(ctx, s.ID())
	var perr *catalog.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}

	// No partial entry and no orphaned blob left behind.
	entries, _ := f.cat.List(ctx)
	if len(entries) != 1 {
		t.Errorf("expected only the seed entry, got %d", len(entries))
	}
	if f.blobs.Len() != 0 {
		t.Errorf("expected orphaned artifact reclaimed, %d blobs remain", f.blobs.Len())
	}
	if !f.bus.has(events.SubjectRecordingFailed) {
		t.Error("expected recording.failed event")
	}
}

func TestPipeline_StopWithoutRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	s, _ := f.p.AcquireSession(ctx, capture.Constraints{Video: true})
	if _, err := f.p.StopRecording(ctx, s.ID()); !errors.Is(err, recorder.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestPipeline_DoubleStartRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	s, _ := f.p.AcquireSession(ctx, capture.Constraints{Video: true})
	if err := f.p.StartRecording(s.ID()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.p.StartRecording(s.ID()); !errors.Is(err, recorder.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on double start, got %v", err)
	}
}

func TestPipeline_SecondRunAfterStop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	s, _ := f.p.AcquireSession(ctx, capture.Constraints{Video: true})
	for run := 0; run < 2; run++ {
		if err := f.p.StartRecording(s.ID()); err != nil {
			t.Fatalf("run %d start: %v", run, err)
		}
		f.track.Write([]byte("x"))
		f.sched.Tick()
		if _, err := f.p.StopRecording(ctx, s.ID()); err != nil {
			t.Fatalf("run %d stop: %v", run, err)
		}
	}

	entries, _ := f.cat.List(ctx)
	if len(entries) != 2 {
		t.Errorf("expected 2 entries after 2 runs, got %d", len(entries))
	}
}

func TestPipeline_ReleaseSessionIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	s, _ := f.p.AcquireSession(ctx, capture.Constraints{Video: true})
	f.p.ReleaseSession(s.ID())
	f.p.ReleaseSession(s.ID())       // repeated release is a no-op
	f.p.ReleaseSession("never-seen") // unknown id is a no-op

	if _, ok := f.p.Session(s.ID()); ok {
		t.Error("released session still tracked")
	}
	if err := f.p.SetTrackEnabled(s.ID(), capture.TrackVideo, false); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestPipeline_ReleaseMidRunCancelsCadence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	s, _ := f.p.AcquireSession(ctx, capture.Constraints{Video: true})
	if err := f.p.StartRecording(s.ID()); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.track.Write([]byte("x"))
	f.sched.Tick()

	// Forced teardown with the run still live: the abandoned run's scheduler
	// subscription must be cancelled, not leaked.
	f.p.ReleaseSession(s.ID())
	if len(f.sched.fns) != 0 {
		t.Errorf("%d scheduler subscription(s) still live after release", len(f.sched.fns))
	}

	// A late tick after teardown is harmless.
	f.sched.Tick()

	if _, err := f.p.StopRecording(ctx, s.ID()); !errors.Is(err, recorder.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState after release mid-run, got %v", err)
	}

	// The aborted run persisted nothing.
	entries, _ := f.cat.List(ctx)
	if len(entries) != 0 {
		t.Errorf("aborted run left %d catalog entries", len(entries))
	}
	if f.blobs.Len() != 0 {
		t.Errorf("aborted run left %d blobs", f.blobs.Len())
	}
}

func TestPipeline_DeleteRecordingReleasesContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	s, _ := f.p.AcquireSession(ctx, capture.Constraints{Video: true})
	f.p.StartRecording(s.ID())
	f.track.Write([]byte("payload"))
	f.sched.Tick()
	entry, err := f.p.StopRecording(ctx, s.ID())
	if err != nil {
		t.Fatalf("stop: %v", err)
	}

	if err := f.p.DeleteRecording(ctx, entry.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	entries, _ := f.cat.List(ctx)
	if len(entries) != 0 {
		t.Errorf("entry still listed after delete: %+v", entries)
	}
	if f.blobs.Len() != 0 {
		t.Errorf("artifact content not released, %d blobs remain", f.blobs.Len())
	}

	// Absent id is a no-op, not an error.
	if err := f.p.DeleteRecording(ctx, entry.ID); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestPipeline_QueryAndContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	s, _ := f.p.AcquireSession(ctx, capture.Constraints{Video: true})
	f.p.StartRecording(s.ID())
	f.track.Write([]byte("abc"))
	f.sched.Tick()
	entry, err := f.p.StopRecording(ctx, s.ID())
	if err != nil {
		t.Fatalf("stop: %v", err)
	}

	got, err := f.p.Query(ctx, query.Params{Search: entry.SessionID[:8], Time: query.TimeAll, Sort: query.SortDate})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].ID != entry.ID {
		t.Fatalf("expected the recorded entry, got %+v", got)
	}

	gotEntry, data, err := f.p.RecordingContent(ctx, entry.ID)
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if gotEntry.ID != entry.ID || !bytes.Equal(data, []byte("abc")) {
		t.Errorf("content mismatch: %+v %q", gotEntry, data)
	}

	if _, _, err := f.p.RecordingContent(ctx, "missing"); !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing id, got %v", err)
	}
}
