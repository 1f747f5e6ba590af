package capture

import "sync"

type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// Track is one live media track. The device side appends bytes via Write;
// the session side drains them chunk by chunk. Tracks start enabled.
type Track struct {
	kind   TrackKind
	stopFn func()

	mu      sync.Mutex
	enabled bool
	pending []byte
	stopped bool
}

// NewTrack builds a track of the given kind. stop is invoked exactly once
// when the owning session is released; nil is allowed.
func NewTrack(kind TrackKind, stop func()) *Track {
	return &Track{kind: kind, stopFn: stop, enabled: true}
}

func (t *Track) Kind() TrackKind { return t.kind }

// Write buffers captured bytes. It implements io.Writer so a device can
// stream straight into the track. Writes after stop are dropped.
func (t *Track) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stopped {
		t.pending = append(t.pending, p...)
	}
	return len(p), nil
}

func (t *Track) setEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *Track) enabledNow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Track) drain() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	data := t.pending
	t.pending = nil
	return data
}

func (t *Track) stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.pending = nil
	stop := t.stopFn
	t.mu.Unlock()
	if stop != nil {
		stop()
	}
}
