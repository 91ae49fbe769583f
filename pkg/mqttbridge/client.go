package mqttbridge

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MessageHandler handles one received message
type MessageHandler func(topic string, payload []byte) error

// Options holds the broker connection settings
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// Client wraps a paho MQTT client
type Client struct {
	client mqtt.Client
	logger *zap.Logger
}

// NewClient connects to the broker
func NewClient(opts Options, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	o := mqtt.NewClientOptions()
	o.AddBroker(opts.Broker)
	o.SetClientID(opts.ClientID)
	if opts.Username != "" {
		o.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		o.SetPassword(opts.Password)
	}
	o.SetAutoReconnect(true)
	o.SetCleanSession(true)
	o.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})
	o.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("MQTT connected", zap.String("broker", opts.Broker))
	})

	client := mqtt.NewClient(o)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Client{client: client, logger: logger}, nil
}

// Subscribe registers handler for topic. Handler errors are logged and the
// message is not redelivered.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	token := c.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logger.Warn("Failed to handle MQTT message", zap.String("topic", msg.Topic()), zap.Error(err))
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}
	return nil
}

// Publish sends payload and waits for the broker acknowledgement or ctx
func (c *Client) Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("failed to publish to topic %s: %w", topic, ctx.Err())
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

// Unsubscribe removes subscriptions
func (c *Client) Unsubscribe(topics ...string) error {
	token := c.client.Unsubscribe(topics...)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to unsubscribe: %w", token.Error())
	}
	return nil
}

// Disconnect closes the connection, waiting up to 250ms for in-flight work
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}

// IsConnected reports the connection state
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}
