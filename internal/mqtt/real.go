package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/activity-sensor/internal/logic"
)

// DefaultBufferSize is how many messages are held while the broker is
// unreachable. Oldest messages are dropped on overflow.
const DefaultBufferSize = 1000

// RealPublisher publishes to an actual MQTT broker. While the connection is
// down, messages are held in a ring buffer and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	logger *zap.Logger

	mu     sync.Mutex
	buffer *ringBuffer
}

// NewRealPublisher creates a publisher connected to the given broker.
// onConnectionChange, if non-nil, is invoked from the client's handlers on
// every connect and disconnect.
func NewRealPublisher(broker, clientID string, logger *zap.Logger, onConnectionChange func(connected bool)) (*RealPublisher, error) {
	if clientID == "" {
		clientID = "activity-sensor"
	}

	p := &RealPublisher{
		logger: logger,
		buffer: newRingBuffer(DefaultBufferSize),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) {
			logger.Info("mqtt connected", zap.String("broker", broker))
			if onConnectionChange != nil {
				onConnectionChange(true)
			}
			p.drainBuffer()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", zap.Error(err))
			if onConnectionChange != nil {
				onConnectionChange(false)
			}
		})

	client := paho.NewClient(opts)
	p.client = client

	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// Publish sends a classified state to the MQTT broker. If the connection is
// down the message is buffered for replay.
func (p *RealPublisher) Publish(state logic.State) error {
	payload, err := FormatPayload(state)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.send(Topic, 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) so lifecycle events survive a flaky link
	return p.send(TopicSystem, 1, event.Retained, payload)
}

func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnected() {
		p.enqueue(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *RealPublisher) enqueue(msg bufferedMsg) {
	p.mu.Lock()
	p.buffer.push(msg)
	n, dropped := p.buffer.len(), p.buffer.droppedCount()
	p.mu.Unlock()

	if dropped > 0 {
		p.logger.Warn("mqtt buffer full, dropping oldest", zap.Int("dropped", dropped))
		return
	}
	p.logger.Debug("mqtt disconnected, message buffered", zap.Int("buffered", n))
}

// drainBuffer replays buffered messages after a reconnect, oldest first.
func (p *RealPublisher) drainBuffer() {
	p.mu.Lock()
	msgs := p.buffer.drainAll()
	p.mu.Unlock()

	if len(msgs) == 0 {
		return
	}
	p.logger.Info("replaying buffered mqtt messages", zap.Int("count", len(msgs)))

	for _, msg := range msgs {
		token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		if !token.WaitTimeout(5 * time.Second) {
			p.logger.Warn("buffered publish timeout", zap.String("topic", msg.topic))
			continue
		}
		if err := token.Error(); err != nil {
			p.logger.Warn("buffered publish failed", zap.String("topic", msg.topic), zap.Error(err))
		}
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
