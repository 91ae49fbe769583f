package hub

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sguter90/sensormaestro/pkg/models"
)

const closeGracePeriod = time.Second

// WebSocketConn adapts a gorilla websocket connection to Conn.
// Writes are serialized by the hub's writer goroutine; reads belong to the caller.
type WebSocketConn struct {
	id        string
	ws        *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// NewWebSocketConn wraps ws with a fresh connection id
func NewWebSocketConn(ws *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{
		id: uuid.NewString(),
		ws: ws,
	}
}

func (c *WebSocketConn) ID() string {
	return c.id
}

// Write sends event as a JSON text frame. The context deadline becomes the write deadline.
func (c *WebSocketConn) Write(ctx context.Context, event models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteJSON(event)
}

// ReadEvent blocks until the viewer sends a message and decodes it as an event
func (c *WebSocketConn) ReadEvent() (models.Event, error) {
	var event models.Event
	err := c.ws.ReadJSON(&event)
	return event, err
}

// Close sends a close frame and closes the underlying connection
func (c *WebSocketConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
