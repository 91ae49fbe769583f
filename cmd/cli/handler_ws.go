package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sguter90/sensormaestro/pkg/hub"
	"github.com/sguter90/sensormaestro/pkg/models"
	"go.uber.org/zap"
)

const (
	wsReadLimit    = 64 << 10
	statsTimeout   = 5 * time.Second
	welcomeMessage = "Welcome to SensorMaestro"
)

// websocketHandler upgrades a viewer connection, registers it with the hub and
// answers request_stats messages until the viewer disconnects
func (rm *RouteManager) websocketHandler(w http.ResponseWriter, r *http.Request) {
	ws, err := rm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		rm.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	ws.SetReadLimit(wsReadLimit)

	conn := hub.NewWebSocketConn(ws)
	if err := rm.hub.Register(conn); err != nil {
		rm.logger.Warn("Rejected viewer connection", zap.Error(err))
		conn.Close()
		return
	}
	defer rm.hub.Unregister(conn.ID())

	rm.logger.Info("Viewer connected", zap.String("connection_id", conn.ID()), zap.String("remote_addr", r.RemoteAddr))

	rm.hub.SendTo(conn.ID(), models.Event{
		Name: models.EventConnectionResponse,
		Data: models.ConnectionResponse{
			Status:    "connected",
			Message:   welcomeMessage,
			Timestamp: time.Now().UTC(),
		},
	})
	rm.sendStats(conn.ID())

	for {
		event, err := conn.ReadEvent()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				rm.logger.Debug("Viewer read failed", zap.String("connection_id", conn.ID()), zap.Error(err))
			}
			break
		}

		switch event.Name {
		case models.EventRequestStats:
			rm.sendStats(conn.ID())
		default:
			rm.logger.Debug("Ignoring viewer event", zap.String("event", event.Name))
		}
	}

	rm.logger.Info("Viewer disconnected", zap.String("connection_id", conn.ID()))
}

// sendStats queues a fresh stats_update for one viewer
func (rm *RouteManager) sendStats(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()

	event, err := rm.stats.Event(ctx)
	if err != nil {
		rm.logger.Warn("Failed to compute stats", zap.Error(err))
		return
	}
	if err := rm.hub.SendTo(id, event); err != nil {
		rm.logger.Debug("Failed to queue stats", zap.String("connection_id", id), zap.Error(err))
	}
}
