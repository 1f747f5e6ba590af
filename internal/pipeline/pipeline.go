// Package pipeline orchestrates the capture → record → persist flow: it owns
// live sessions, drives one recorder per run, and hands finished artifacts to
// the blob store and catalog.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/reel/internal/blob"
	"github.com/MikeSquared-Agency/reel/internal/capture"
	"github.com/MikeSquared-Agency/reel/internal/catalog"
	"github.com/MikeSquared-Agency/reel/internal/events"
	"github.com/MikeSquared-Agency/reel/internal/query"
	"github.com/MikeSquared-Agency/reel/internal/recorder"
)

// ErrNoSession marks an operation against a session id the pipeline does not
// hold.
var ErrNoSession = errors.New("pipeline: no such session")

// Bus is the event publication surface the pipeline needs; nil disables
// event emission.
type Bus interface {
	Publish(subject string, data any) error
}

// Pipeline holds the live state: acquired sessions and in-flight runs, keyed
// by session id.
type Pipeline struct {
	device capture.Device
	sched  recorder.Scheduler
	blobs  blob.Store
	cat    catalog.Catalog
	engine *query.Engine
	bus    Bus
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*capture.Session
	runs     map[string]*recorder.Recorder
}

func New(device capture.Device, sched recorder.Scheduler, blobs blob.Store, cat catalog.Catalog, engine *query.Engine, bus Bus, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		device:   device,
		sched:    sched,
		blobs:    blobs,
		cat:      cat,
		engine:   engine,
		bus:      bus,
		logger:   logger,
		sessions: make(map[string]*capture.Session),
		runs:     make(map[string]*recorder.Recorder),
	}
}

// AcquireSession opens a device session and takes ownership of it.
func (p *Pipeline) AcquireSession(ctx context.Context, c capture.Constraints) (*capture.Session, error) {
	s, err := capture.Acquire(ctx, p.device, c)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.sessions[s.ID()] = s
	p.mu.Unlock()

	p.logger.Info("session acquired", "session_id", s.ID(), "tracks", len(s.Tracks()))
	p.publish(events.SubjectSessionAcquired, map[string]any{"session_id": s.ID()})
	return s, nil
}

// Session looks up a live session by id.
func (p *Pipeline) Session(id string) (*capture.Session, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.sessions[id]
	return s, ok
}

// SetTrackEnabled toggles one track of a live session.
func (p *Pipeline) SetTrackEnabled(id string, kind capture.TrackKind, enabled bool) error {
	s, ok := p.Session(id)
	if !ok {
		return ErrNoSession
	}
	s.SetTrackEnabled(kind, enabled)
	return nil
}

// ReleaseSession releases the session and forgets it. Releasing an unknown or
// already-released id is a no-op so teardown stays idempotent. Callers should
// stop any live run first to keep its artifact; a release mid-run aborts the
// run, discarding it, and a later StopRecording reports ErrInvalidState.
func (p *Pipeline) ReleaseSession(id string) {
	p.mu.Lock()
	s, ok := p.sessions[id]
	r, hasRun := p.runs[id]
	delete(p.sessions, id)
	delete(p.runs, id)
	p.mu.Unlock()

	// A run abandoned by forced teardown still holds its scheduler
	// subscription; abort it so the cadence ticker is released too.
	if hasRun {
		r.Abort()
	}

	if !ok {
		return
	}
	s.Release()
	p.logger.Info("session released", "session_id", id)
	p.publish(events.SubjectSessionReleased, map[string]any{"session_id": id})
}

// StartRecording begins a run against a live session. One run per session at
// a time; starting while one is live is an ErrInvalidState.
func (p *Pipeline) StartRecording(sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[sessionID]
	if !ok {
		return ErrNoSession
	}
	if r, exists := p.runs[sessionID]; exists && r.State() == recorder.StateRecording {
		return fmt.Errorf("run already live for session %s: %w", sessionID, recorder.ErrInvalidState)
	}

	r := recorder.New(s, p.sched, p.logger)
	if err := r.Start(); err != nil {
		return err
	}
	p.runs[sessionID] = r

	p.publish(events.SubjectRecordingStarted, map[string]any{"session_id": sessionID})
	return nil
}

// StopRecording finalizes the live run for a session: the recorder's
// completion result is the sole hand-off into durable storage. On a rejected
// catalog write the just-uploaded artifact is reclaimed so nothing is left
// orphaned.
func (p *Pipeline) StopRecording(ctx context.Context, sessionID string) (catalog.Entry, error) {
	p.mu.Lock()
	r, ok := p.runs[sessionID]
	if ok {
		delete(p.runs, sessionID)
	}
	p.mu.Unlock()

	if !ok {
		return catalog.Entry{}, fmt.Errorf("no run for session %s: %w", sessionID, recorder.ErrInvalidState)
	}

	res, err := r.Stop()
	if err != nil {
		p.publish(events.SubjectRecordingFailed, events.RecordingFailed{SessionID: sessionID, Reason: err.Error()})
		return catalog.Entry{}, err
	}
	return p.persist(ctx, res)
}

func (p *Pipeline) persist(ctx context.Context, res recorder.Result) (catalog.Entry, error) {
	id := uuid.NewString()
	createdAt := res.StoppedAt
	entry := catalog.Entry{
		ID:              id,
		Filename:        fmt.Sprintf("rec_%s_%s.bin", shortID(res.SessionID), createdAt.Format("20060102_150405")),
		CreatedAt:       createdAt,
		DurationSeconds: res.DurationSeconds,
		SessionID:       res.SessionID,
	}

	ref, err := p.blobs.Put(ctx, "artifacts/"+id+".bin", res.Artifact)
	if err != nil {
		p.publish(events.SubjectRecordingFailed, events.RecordingFailed{SessionID: res.SessionID, Reason: err.Error()})
		return catalog.Entry{}, fmt.Errorf("store artifact: %w", err)
	}
	entry.ContentRef = ref

	if err := p.cat.Append(ctx, entry); err != nil {
		// The artifact is orphaned now; reclaim it before surfacing the error.
		if rmErr := p.blobs.Remove(ctx, ref); rmErr != nil {
			p.logger.Error("failed to reclaim orphaned artifact", "content_ref", ref, "error", rmErr)
		}
		p.publish(events.SubjectRecordingFailed, events.RecordingFailed{SessionID: res.SessionID, Reason: err.Error()})
		return catalog.Entry{}, err
	}

	p.logger.Info("recording persisted",
		"entry_id", entry.ID,
		"session_id", entry.SessionID,
		"filename", entry.Filename,
		"duration_seconds", entry.DurationSeconds)
	p.publish(events.SubjectRecordingCompleted, events.RecordingCompleted{
		EntryID:         entry.ID,
		SessionID:       entry.SessionID,
		Filename:        entry.Filename,
		ContentRef:      entry.ContentRef,
		DurationSeconds: entry.DurationSeconds,
		CreatedAt:       entry.CreatedAt.Format(time.RFC3339),
	})
	return entry, nil
}

// Query returns a filtered, sorted view over the current catalog snapshot.
func (p *Pipeline) Query(ctx context.Context, params query.Params) ([]catalog.Entry, error) {
	entries, err := p.cat.List(ctx)
	if err != nil {
		return nil, err
	}
	return p.engine.Query(entries, params), nil
}

// DeleteRecording removes a catalog entry and releases its artifact content.
// Deleting an absent id is a no-op.
func (p *Pipeline) DeleteRecording(ctx context.Context, id string) error {
	entry, ok, err := p.cat.Remove(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := p.blobs.Remove(ctx, entry.ContentRef); err != nil {
		p.logger.Error("failed to release artifact content", "entry_id", id, "content_ref", entry.ContentRef, "error", err)
	}
	p.publish(events.SubjectRecordingRemoved, map[string]any{"entry_id": id})
	return nil
}

// RecordingContent resolves a catalog entry and its artifact bytes.
func (p *Pipeline) RecordingContent(ctx context.Context, id string) (catalog.Entry, []byte, error) {
	entries, err := p.cat.List(ctx)
	if err != nil {
		return catalog.Entry{}, nil, err
	}
	for _, e := range entries {
		if e.ID == id {
			data, err := p.blobs.Get(ctx, e.ContentRef)
			if err != nil {
				return catalog.Entry{}, nil, err
			}
			return e, data, nil
		}
	}
	return catalog.Entry{}, nil, blob.ErrNotFound
}

// Counts reports live sessions and in-flight runs for the status endpoint.
func (p *Pipeline) Counts() (sessions, runs int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions), len(p.runs)
}

func (p *Pipeline) publish(subject string, data any) {
	if p.bus == nil {
		return
	}
	if err := p.bus.Publish(subject, data); err != nil {
		p.logger.Warn("event publish failed", "subject", subject, "error", err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
