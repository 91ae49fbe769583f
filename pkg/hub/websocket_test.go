package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sguter90/sensormaestro/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketConn_WriteAndRead(t *testing.T) {
	upgrader := websocket.Upgrader{}
	serverConns := make(chan *WebSocketConn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- NewWebSocketConn(ws)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	conn := <-serverConns
	assert.NotEmpty(t, conn.ID())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, models.Event{Name: models.EventStatsUpdate, Data: map[string]int{"rs485_count": 3}}))

	var got map[string]interface{}
	require.NoError(t, client.ReadJSON(&got))
	assert.Equal(t, models.EventStatsUpdate, got["event"])

	require.NoError(t, client.WriteJSON(models.Event{Name: models.EventRequestStats}))
	ev, err := conn.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, models.EventRequestStats, ev.Name)

	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
}

func TestWebSocketConn_WriteCancelledContext(t *testing.T) {
	conn := &WebSocketConn{id: "x"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := conn.Write(ctx, models.Event{Name: models.EventRS485Data})
	assert.ErrorIs(t, err, context.Canceled)
}
