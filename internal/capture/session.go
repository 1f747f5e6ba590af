// Package capture owns live device media sessions: acquiring hardware tracks,
// toggling them, and releasing them deterministically.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrReleased is returned by ReadChunk after the session has been released.
var ErrReleased = errors.New("capture: session released")

// DeviceError reports that a device could not be acquired: missing hardware,
// denied permission, or no track matching the constraints. It is recoverable;
// the caller decides whether to retry acquisition.
type DeviceError struct {
	Reason string
	Err    error
}

func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture: device %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("capture: device %s", e.Reason)
}

func (e *DeviceError) Unwrap() error { return e.Err }

type Constraints struct {
	Video    bool   `json:"video"`
	Audio    bool   `json:"audio"`
	DeviceID string `json:"device_id,omitempty"`
}

// Device opens live tracks matching the given constraints. Implementations
// must return a *DeviceError when the hardware cannot be acquired.
type Device interface {
	Open(ctx context.Context, c Constraints) ([]*Track, error)
}

// Session is the exclusive owner of a set of live tracks. It is acquired once,
// mutated only through its own methods, and released exactly once (further
// releases are no-ops).
type Session struct {
	id string

	mu       sync.Mutex
	tracks   []*Track
	released bool
}

// Acquire opens a session against dev. At least one track kind must be
// requested; a constraint set matching no hardware is a *DeviceError.
func Acquire(ctx context.Context, dev Device, c Constraints) (*Session, error) {
	if !c.Video && !c.Audio {
		return nil, &DeviceError{Reason: "no tracks requested"}
	}
	tracks, err := dev.Open(ctx, c)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, &DeviceError{Reason: "no matching tracks"}
	}
	return &Session{id: uuid.NewString(), tracks: tracks}, nil
}

func (s *Session) ID() string { return s.id }

// Active reports whether the session still holds its tracks.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.released
}

// Tracks returns the kinds of the session's tracks in acquisition order.
func (s *Session) Tracks() []TrackKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]TrackKind, len(s.tracks))
	for i, tr := range s.tracks {
		kinds[i] = tr.Kind()
	}
	return kinds
}

// SetTrackEnabled toggles one track kind without tearing the session down.
// Toggling a kind the session does not have is a no-op.
func (s *Session) SetTrackEnabled(kind TrackKind, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	for _, tr := range s.tracks {
		if tr.Kind() == kind {
			tr.setEnabled(enabled)
		}
	}
}

// ReadChunk drains the bytes buffered on every enabled track since the last
// read, concatenated in track order. Disabled tracks contribute nothing and
// their buffers are discarded so stale data never leaks into a later chunk.
func (s *Session) ReadChunk() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, ErrReleased
	}
	var chunk []byte
	for _, tr := range s.tracks {
		data := tr.drain()
		if tr.enabledNow() {
			chunk = append(chunk, data...)
		}
	}
	return chunk, nil
}

// Release stops all tracks and frees hardware access. Idempotent: releasing
// an already-released session is a no-op, never an error.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	for _, tr := range s.tracks {
		tr.stop()
	}
}
