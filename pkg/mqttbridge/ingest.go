package mqttbridge

import (
	"context"
	"time"

	"github.com/sguter90/sensormaestro/pkg/ingest"
	"go.uber.org/zap"
)

const ingestTimeout = 10 * time.Second

// Ingester runs the ingest pipeline
type Ingester interface {
	Ingest(ctx context.Context, raw []byte) (*ingest.Result, error)
}

// Subscriber is the part of Client used to receive messages
type Subscriber interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
}

// IngestHandler feeds MQTT messages into the same pipeline as HTTP ingest
type IngestHandler struct {
	ingester Ingester
	logger   *zap.Logger
}

// NewIngestHandler creates a new IngestHandler
func NewIngestHandler(ingester Ingester, logger *zap.Logger) *IngestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestHandler{ingester: ingester, logger: logger}
}

// Start subscribes to topic with QoS 1
func (h *IngestHandler) Start(sub Subscriber, topic string) error {
	if err := sub.Subscribe(topic, 1, h.Handle); err != nil {
		return err
	}
	h.logger.Info("Subscribed to MQTT ingest topic", zap.String("topic", topic))
	return nil
}

// Handle ingests one message payload
func (h *IngestHandler) Handle(topic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	result, err := h.ingester.Ingest(ctx, payload)
	if err != nil {
		return err
	}

	h.logger.Debug("Ingested MQTT message",
		zap.String("topic", topic),
		zap.String("kind", string(result.Kind)),
		zap.Int64("id", result.ID),
	)
	return nil
}
