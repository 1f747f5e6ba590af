package capture

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// FFmpegDevice captures device media by shelling out to ffmpeg, one process
// per track, streaming encoded bytes from stdout into the track buffer.
type FFmpegDevice struct {
	Format string // ffmpeg input format, e.g. "avfoundation" or "v4l2"
	Input  string // default input spec, e.g. ":default" or "/dev/video0"
}

func NewFFmpegDevice(format, input string) *FFmpegDevice {
	return &FFmpegDevice{Format: format, Input: input}
}

func (d *FFmpegDevice) Open(ctx context.Context, c Constraints) ([]*Track, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, &DeviceError{Reason: "unavailable", Err: fmt.Errorf("ffmpeg not found: %w", err)}
	}

	input := d.Input
	if c.DeviceID != "" {
		input = c.DeviceID
	}

	var tracks []*Track
	fail := func(err error) ([]*Track, error) {
		for _, tr := range tracks {
			tr.stop()
		}
		return nil, err
	}

	if c.Video {
		tr, err := d.startTrack(ctx, TrackVideo, input,
			"-f", d.Format, "-i", input,
			"-an", "-f", "mpegts", "-")
		if err != nil {
			return fail(err)
		}
		tracks = append(tracks, tr)
	}
	if c.Audio {
		tr, err := d.startTrack(ctx, TrackAudio, input,
			"-f", d.Format, "-i", input,
			"-vn", "-ac", "1", "-ar", "16000", "-f", "s16le", "-")
		if err != nil {
			return fail(err)
		}
		tracks = append(tracks, tr)
	}
	return tracks, nil
}

func (d *FFmpegDevice) startTrack(ctx context.Context, kind TrackKind, input string, args ...string) (*Track, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &DeviceError{Reason: "unavailable", Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &DeviceError{Reason: "unavailable", Err: fmt.Errorf("start ffmpeg %s on %s: %w", kind, input, err)}
	}

	track := NewTrack(kind, func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})
	go func() {
		_, _ = io.Copy(track, stdout)
	}()
	return track, nil
}
