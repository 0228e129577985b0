// Package mqtt wraps the paho client with the connection policy the
// bridge needs: normalized broker URLs, a last-will on the bridge
// availability topic, and timeout-checked publish/subscribe.
package mqtt

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Config holds MQTT connection configuration.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string

	// WillTopic gets "offline" published on unclean disconnect and
	// "online" retained right after connect.
	WillTopic string
}

// Handler receives message payloads for a subscription.
type Handler func(topic string, payload []byte)

// Client wraps the paho MQTT client.
type Client struct {
	client mqtt.Client
	log    *zap.SugaredLogger
}

// NewClient connects to the broker and blocks until the connection is
// established or times out.
func NewClient(cfg Config, logger *zap.SugaredLogger) (*Client, error) {
	// Disable the MQTT library's internal logging; connection state is
	// reported through our logger instead.
	mqtt.ERROR = log.New(io.Discard, "", 0)
	mqtt.CRITICAL = log.New(io.Discard, "", 0)
	mqtt.WARN = log.New(io.Discard, "", 0)

	brokerURL := cfg.Broker
	if !strings.HasPrefix(brokerURL, "tcp://") && !strings.HasPrefix(brokerURL, "ssl://") {
		brokerURL = "tcp://" + brokerURL
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetWriteTimeout(10 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)

	if cfg.WillTopic != "" {
		opts.SetWill(cfg.WillTopic, "offline", 0, true)
	}

	opts.OnConnect = func(c mqtt.Client) {
		logger.Debugw("mqtt connected", "broker", brokerURL)
		if cfg.WillTopic != "" {
			c.Publish(cfg.WillTopic, 0, true, "online")
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Errorw("mqtt connection lost", "error", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout after 15s")
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}

	return &Client{client: client, log: logger}, nil
}

// Publish sends a payload to a topic. Byte and string payloads go out
// as-is; anything else is JSON-encoded.
func (c *Client) Publish(topic string, payload any, retained bool) error {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload for %s: %w", topic, err)
		}
	}

	token := c.client.Publish(topic, 0, retained, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout on %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", topic, token.Error())
	}
	return nil
}

// Subscribe registers a handler for a topic filter.
func (c *Client) Subscribe(topic string, handler Handler) error {
	token := c.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, token.Error())
	}
	c.log.Debugw("subscribed", "topic", topic)
	return nil
}

// Connected reports the connection state.
func (c *Client) Connected() bool {
	return c.client.IsConnected()
}

// Disconnect closes the connection, flushing in-flight messages.
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
	c.log.Debug("mqtt disconnected")
}
