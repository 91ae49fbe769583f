package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sguter90/sensormaestro/pkg/models"
	"go.uber.org/zap"
)

const (
	DefaultQueueSize       = 64
	DefaultDeliveryTimeout = 2 * time.Second
)

var (
	// ErrDeliveryTimeout is reported when a viewer did not accept an event in time
	ErrDeliveryTimeout = errors.New("delivery timeout")
	// ErrHubClosed is returned by operations on a closed hub
	ErrHubClosed = errors.New("hub closed")
	// ErrUnknownConnection is returned by SendTo for ids that are not registered
	ErrUnknownConnection = errors.New("unknown connection")
	// ErrQueueFull is returned by SendTo when the viewer's queue has no room
	ErrQueueFull = errors.New("connection queue full")
)

// Conn is a live viewer connection. Write must honor ctx cancellation where the
// transport allows it; the hub bounds each write by the delivery timeout either way.
type Conn interface {
	ID() string
	Write(ctx context.Context, event models.Event) error
	Close() error
}

// Recorder receives delivery statistics
type Recorder interface {
	ConnectionOpened()
	ConnectionClosed()
	Delivered(event string, took time.Duration)
	Dropped(event string, reason string)
}

type nopRecorder struct{}

func (nopRecorder) ConnectionOpened() {}
func (nopRecorder) ConnectionClosed() {}
func (nopRecorder) Delivered(string, time.Duration) {}
func (nopRecorder) Dropped(string, string) {}

// Options configures a Hub. Zero values fall back to defaults.
type Options struct {
	QueueSize       int
	DeliveryTimeout time.Duration
	Logger          *zap.Logger
	Recorder        Recorder
}

// ConnectionInfo describes a registered connection
type ConnectionInfo struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connected_at"`
}

type client struct {
	conn        Conn
	connectedAt time.Time
	queue       chan models.Event
	done        chan struct{}
	closeOnce   sync.Once
}

// Hub fans events out to all registered viewer connections.
// Each connection has its own bounded queue drained by its own writer goroutine,
// so a slow or broken viewer never blocks Publish or other viewers.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
	wg      sync.WaitGroup

	queueSize int
	timeout   time.Duration
	logger    *zap.Logger
	recorder  Recorder
}

// New creates a new Hub
func New(opts Options) *Hub {
	h := &Hub{
		clients:   make(map[string]*client),
		queueSize: opts.QueueSize,
		timeout:   opts.DeliveryTimeout,
		logger:    opts.Logger,
		recorder:  opts.Recorder,
	}
	if h.queueSize <= 0 {
		h.queueSize = DefaultQueueSize
	}
	if h.timeout <= 0 {
		h.timeout = DefaultDeliveryTimeout
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.recorder == nil {
		h.recorder = nopRecorder{}
	}
	return h
}

// Register adds a connection and starts its writer. A connection registered
// under an id that is already present replaces the previous one.
func (h *Hub) Register(conn Conn) error {
	c := &client{
		conn:        conn,
		connectedAt: time.Now().UTC(),
		queue:       make(chan models.Event, h.queueSize),
		done:        make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	previous := h.clients[conn.ID()]
	h.clients[conn.ID()] = c
	h.wg.Add(1)
	h.mu.Unlock()

	if previous != nil {
		h.shutdown(previous, "replaced")
	}

	h.recorder.ConnectionOpened()
	h.logger.Debug("Viewer connected", zap.String("connection_id", conn.ID()))

	go h.run(c)
	return nil
}

// Unregister removes and closes a connection. Unknown ids are ignored.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	h.mu.Unlock()

	if ok {
		h.shutdown(c, "unregistered")
	}
}

// Publish queues event for every registered connection and returns without
// waiting for delivery. It reports how many connections accepted the event.
func (h *Hub) Publish(event models.Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return 0
	}

	queued := 0
	for _, c := range h.clients {
		if h.enqueue(c, event) {
			queued++
		}
	}
	return queued
}

// SendTo queues event for a single connection, ordered with its broadcasts
func (h *Hub) SendTo(id string, event models.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrHubClosed
	}

	c, ok := h.clients[id]
	if !ok {
		return ErrUnknownConnection
	}
	if !h.enqueue(c, event) {
		return ErrQueueFull
	}
	return nil
}

// Len returns the number of registered connections
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Connections returns the registered connections
func (h *Hub) Connections() []ConnectionInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]ConnectionInfo, 0, len(h.clients))
	for id, c := range h.clients {
		infos = append(infos, ConnectionInfo{ID: id, ConnectedAt: c.connectedAt})
	}
	return infos
}

// Close unregisters all connections and waits for their writers to stop
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		h.shutdown(c, "hub closed")
	}
	h.wg.Wait()
}

func (h *Hub) enqueue(c *client, event models.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.queue <- event:
		return true
	default:
		h.recorder.Dropped(event.Name, "queue_full")
		h.logger.Warn("Viewer queue full, dropping event",
			zap.String("connection_id", c.conn.ID()),
			zap.String("event", event.Name),
		)
		return false
	}
}

// run drains the client's queue in order until the client is shut down
func (h *Hub) run(c *client) {
	defer h.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case event := <-c.queue:
			start := time.Now()
			if err := h.deliver(c, event); err != nil {
				if errors.Is(err, ErrHubClosed) {
					return
				}
				reason := "write_error"
				if errors.Is(err, ErrDeliveryTimeout) || errors.Is(err, context.DeadlineExceeded) {
					reason = "timeout"
				}
				h.recorder.Dropped(event.Name, reason)
				h.logger.Warn("Dropping viewer connection after failed delivery",
					zap.String("connection_id", c.conn.ID()),
					zap.String("event", event.Name),
					zap.String("reason", reason),
					zap.Error(err),
				)
				h.remove(c)
				return
			}
			h.recorder.Delivered(event.Name, time.Since(start))
		}
	}
}

// deliver writes one event, bounded by the delivery timeout even if the
// connection ignores its context
func (h *Hub) deliver(c *client, event models.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- c.conn.Write(ctx, event)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ErrDeliveryTimeout
	case <-c.done:
		return ErrHubClosed
	}
}

// remove unregisters c if it is still the registered client for its id
func (h *Hub) remove(c *client) {
	id := c.conn.ID()

	h.mu.Lock()
	if current, ok := h.clients[id]; ok && current == c {
		delete(h.clients, id)
	}
	h.mu.Unlock()

	h.shutdown(c, "delivery failed")
}

func (h *Hub) shutdown(c *client, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		if err := c.conn.Close(); err != nil {
			h.logger.Debug("Failed to close viewer connection", zap.String("connection_id", c.conn.ID()), zap.Error(err))
		}
		h.recorder.ConnectionClosed()
		h.logger.Debug("Viewer disconnected", zap.String("connection_id", c.conn.ID()), zap.String("reason", reason))
	})
}
