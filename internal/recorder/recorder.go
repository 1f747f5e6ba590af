// Package recorder turns a live capture session into an ordered, immutable
// artifact. One Recorder drives one run: Idle → Recording → Stopped.
package recorder

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/reel/internal/capture"
)

// ErrInvalidState is returned when an operation is invoked in a state that
// forbids it. It indicates a caller-discipline bug and is never swallowed.
var ErrInvalidState = errors.New("recorder: invalid state")

type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopped   State = "stopped"
)

// Chunk is one time-ordered segment of a run. Index is the cadence tick that
// produced it; indexes are contiguous from zero.
type Chunk struct {
	Index int
	Data  []byte
}

// Result is the completion event of a run: the assembled artifact plus the
// elapsed duration in whole seconds, derived from the tick count rather than
// wall-clock subtraction so scheduling jitter cannot skew it.
type Result struct {
	SessionID       string
	Artifact        []byte
	Chunks          int
	DurationSeconds int
	StartedAt       time.Time
	StoppedAt       time.Time
}

// Recorder holds a borrowed reference to a capture session; it never releases
// the hardware itself. Callers must Stop before releasing the session —
// a release mid-run surfaces as ErrInvalidState from Stop, never as silent
// truncation.
type Recorder struct {
	session *capture.Session
	sched   Scheduler
	logger  *slog.Logger

	mu        sync.Mutex
	state     State
	chunks    []Chunk
	ticks     int
	startedAt time.Time
	runErr    error
	cancel    func()
}

func New(session *capture.Session, sched Scheduler, logger *slog.Logger) *Recorder {
	return &Recorder{
		session: session,
		sched:   sched,
		logger:  logger,
		state:   StateIdle,
	}
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start begins emitting chunks from the session at the scheduler's cadence.
// Valid only from Idle with an active session.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return fmt.Errorf("start from %s: %w", r.state, ErrInvalidState)
	}
	if r.session == nil || !r.session.Active() {
		return fmt.Errorf("start with inactive session: %w", ErrInvalidState)
	}

	r.state = StateRecording
	r.startedAt = time.Now().UTC()
	r.cancel = r.sched.Subscribe(r.onTick)
	r.logger.Info("recording started", "session_id", r.session.ID())
	return nil
}

// onTick appends one chunk per cadence tick, in wall-clock order. A session
// released out from under the run poisons it; the error surfaces at Stop.
func (r *Recorder) onTick() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording || r.runErr != nil {
		return
	}
	data, err := r.session.ReadChunk()
	if err != nil {
		r.runErr = err
		r.logger.Error("chunk read failed mid-run", "session_id", r.session.ID(), "error", err)
		return
	}
	r.chunks = append(r.chunks, Chunk{Index: r.ticks, Data: data})
	r.ticks++
}

// Abort terminates a live run without assembling an artifact: the scheduler
// subscription is cancelled and the collected chunks are discarded. It is the
// forced-teardown exit path; aborting a recorder that is not Recording is a
// no-op. Stop after Abort returns ErrInvalidState.
func (r *Recorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return
	}
	r.state = StateStopped
	r.cancel()
	r.chunks = nil
	r.logger.Warn("recording aborted", "session_id", r.session.ID(), "ticks", r.ticks)
}

// Stop transitions to Stopped, flushes the in-flight bytes so no trailing
// data is lost, and assembles all chunks, in order, into one artifact.
// A run with zero ticks yields an empty artifact and duration 0 — that is
// valid, not an error. Valid only from Recording.
func (r *Recorder) Stop() (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return Result{}, fmt.Errorf("stop from %s: %w", r.state, ErrInvalidState)
	}
	r.state = StateStopped
	r.cancel()

	if r.runErr != nil {
		return Result{}, fmt.Errorf("session released during recording: %w", ErrInvalidState)
	}

	// Flush before the caller releases hardware: bytes captured since the
	// last tick belong to the final chunk.
	tail, err := r.session.ReadChunk()
	if err != nil {
		return Result{}, fmt.Errorf("flush after session release: %w", ErrInvalidState)
	}
	if len(tail) > 0 && len(r.chunks) > 0 {
		last := &r.chunks[len(r.chunks)-1]
		last.Data = append(last.Data, tail...)
	}

	var size int
	for _, c := range r.chunks {
		size += len(c.Data)
	}
	artifact := make([]byte, 0, size)
	for _, c := range r.chunks {
		artifact = append(artifact, c.Data...)
	}

	res := Result{
		SessionID:       r.session.ID(),
		Artifact:        artifact,
		Chunks:          len(r.chunks),
		DurationSeconds: r.ticks,
		StartedAt:       r.startedAt,
		StoppedAt:       time.Now().UTC(),
	}
	r.logger.Info("recording stopped",
		"session_id", res.SessionID,
		"chunks", res.Chunks,
		"duration_seconds", res.DurationSeconds,
		"bytes", len(res.Artifact))
	return res, nil
}
