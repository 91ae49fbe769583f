package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sguter90/sensormaestro/pkg/models"
	"go.uber.org/zap"
)

// MirrorID is the hub connection id of the event mirror
const MirrorID = "mqtt-mirror"

// ErrMirrorClosed is returned by writes after Close
var ErrMirrorClosed = errors.New("mirror closed")

// Publisher is the part of Client used to send messages
type Publisher interface {
	Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error
}

// Mirror is a hub connection that republishes every event to
// <prefix>/<event name>. Publish failures lose that event only; the mirror
// stays registered so it resumes once the broker is reachable again.
type Mirror struct {
	publisher Publisher
	prefix    string
	logger    *zap.Logger
	closed    atomic.Bool
}

// NewMirror creates a new Mirror
func NewMirror(publisher Publisher, prefix string, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{
		publisher: publisher,
		prefix:    strings.TrimSuffix(prefix, "/"),
		logger:    logger,
	}
}

func (m *Mirror) ID() string {
	return MirrorID
}

// Topic returns the topic an event is published to
func (m *Mirror) Topic(event string) string {
	return m.prefix + "/" + event
}

func (m *Mirror) Write(ctx context.Context, event models.Event) error {
	if m.closed.Load() {
		return ErrMirrorClosed
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.Name, err)
	}

	// stay inside the hub's delivery deadline
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Until(deadline)/2)
		defer cancel()
	}

	if err := m.publisher.Publish(ctx, m.Topic(event.Name), 0, false, payload); err != nil {
		m.logger.Warn("Failed to mirror event",
			zap.String("event", event.Name),
			zap.String("topic", m.Topic(event.Name)),
			zap.Error(err),
		)
	}
	return nil
}

// Close stops the mirror. The underlying client is owned by the caller.
func (m *Mirror) Close() error {
	m.closed.Store(true)
	return nil
}
