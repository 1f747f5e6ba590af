// Package events publishes recording lifecycle events to NATS so external
// consumers (galleries, notifiers) can react without polling the catalog.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectSessionAcquired    = "reel.session.acquired"
	SubjectSessionReleased    = "reel.session.released"
	SubjectRecordingStarted   = "reel.recording.started"
	SubjectRecordingCompleted = "reel.recording.completed"
	SubjectRecordingFailed    = "reel.recording.failed"
	SubjectRecordingRemoved   = "reel.recording.removed"
)

// RecordingCompleted is emitted once per finished run, after the catalog
// entry is durable.
type RecordingCompleted struct {
	EntryID         string `json:"entry_id"`
	SessionID       string `json:"session_id"`
	Filename        string `json:"filename"`
	ContentRef      string `json:"content_ref"`
	DurationSeconds int    `json:"duration_seconds"`
	CreatedAt       string `json:"created_at"`
}

// RecordingFailed is emitted when a finished run could not be persisted.
type RecordingFailed struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func Connect(url, token string, logger *slog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Publisher{conn: nc, logger: logger}, nil
}

func (p *Publisher) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return p.conn.Publish(subject, payload)
}

func (p *Publisher) Close() {
	p.conn.Close()
}
