package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"pav-go/internal/config"
	"pav-go/internal/model"
	"pav-go/internal/pav"
)

const publishTimeout = 10 * time.Second

// MQTTSink publishes payloads to a broker topic at QoS 1, for deployments
// where the collector subscribes to a broker instead of exposing an
// endpoint. QoS 1 matches the delivery contract: at-least-once.
type MQTTSink struct {
	client mqtt.Client
	topic  string
}

// NewMQTTSink connects to the broker and returns the sink. The connection
// auto-reconnects; a sink whose broker is down still constructs, and Send
// reports retryable failures until the connection comes back.
func NewMQTTSink(cfg config.SinkConfig) (*MQTTSink, error) {
	if cfg.MQTTBroker == "" {
		return nil, fmt.Errorf("mqtt sink requires mqtt_broker to be set")
	}
	topic := cfg.MQTTTopic
	if topic == "" {
		topic = "pav/arrivals"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	// With connect retry enabled the token only completes once connected,
	// so bound the wait. An unreachable broker keeps retrying in the
	// background and Send fails retryable until it comes back.
	if token.WaitTimeout(5 * time.Second) {
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("mqtt connect: %w", err)
		}
	}

	return &MQTTSink{client: client, topic: topic}, nil
}

// Send publishes the payload. All failures are retryable: the broker does
// not inspect payloads.
func (m *MQTTSink) Send(_ context.Context, payload *model.SyncPayload) error {
	if !m.client.IsConnected() {
		return &pav.DeliveryError{Retryable: true, Err: fmt.Errorf("mqtt not connected")}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &pav.DeliveryError{Retryable: false, Err: fmt.Errorf("encoding payload: %w", err)}
	}

	token := m.client.Publish(m.topic, 1, false, body)
	if !token.WaitTimeout(publishTimeout) {
		return &pav.DeliveryError{Retryable: true, Err: fmt.Errorf("publish timed out after %s", publishTimeout)}
	}
	if err := token.Error(); err != nil {
		return &pav.DeliveryError{Retryable: true, Err: err}
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTTSink) Close() error {
	m.client.Disconnect(250)
	return nil
}

// Compile-time check that MQTTSink implements the RemoteSink interface
var _ pav.RemoteSink = (*MQTTSink)(nil)
