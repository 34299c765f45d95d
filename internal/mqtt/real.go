package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/relay-lights/internal/events"
)

// DefaultBufferSize is how many messages are kept while disconnected.
const DefaultBufferSize = 256

// Config configures the broker connection.
type Config struct {
	Broker     string
	ClientID   string
	Prefix     string
	BufferSize int
	// Commander, if set, receives messages from the command topic.
	Commander  Commander
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	buffer *ringBuffer
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRealPublisher creates a publisher connected to the given broker. The
// broker does not need to be reachable: paho keeps retrying in the
// background and messages are buffered meanwhile.
func NewRealPublisher(cfg Config, logger *slog.Logger) (*RealPublisher, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &RealPublisher{
		cfg:    cfg,
		logger: logger,
		buffer: newRingBuffer(cfg.BufferSize),
		ctx:    ctx,
		cancel: cancel,
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem(cfg.Prefix), will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("Connection lost", "error", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		logger.Warn("Broker not reachable yet, retrying in background", "broker", cfg.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		cancel()
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.logger.Info("Connected", "broker", p.cfg.Broker)

	if p.cfg.Commander != nil {
		topic := TopicCommand(p.cfg.Prefix)
		token := c.Subscribe(topic, 1, func(_ paho.Client, m paho.Message) {
			go p.handleCommand(m.Payload())
		})
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			p.logger.Error("Subscribe failed", "topic", topic, "error", token.Error())
		}
	}

	// Replay from a goroutine: paho blocks publishes issued inside the
	// connect handler until it returns.
	go func() {
		p.mu.Lock()
		pending := p.buffer.drainAll()
		p.mu.Unlock()
		if len(pending) > 0 {
			p.logger.Info("Replaying buffered messages", "count", len(pending))
		}
		for _, msg := range pending {
			if err := p.send(msg); err != nil {
				p.logger.Warn("Replay failed", "topic", msg.topic, "error", err)
			}
		}
		reconnected, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		p.send(bufferedMsg{topic: TopicSystem(p.cfg.Prefix), payload: reconnected, qos: 1, retained: true})
	}()
}

func (p *RealPublisher) handleCommand(payload []byte) {
	ctx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
	defer cancel()
	reply := HandleCommand(ctx, p.cfg.Commander, payload)
	if err := p.publish(bufferedMsg{topic: TopicCommandResult(p.cfg.Prefix), payload: reply}); err != nil {
		p.logger.Warn("Command reply failed", "error", err)
	}
}

// Publish sends a controller event to the MQTT broker.
func (p *RealPublisher) Publish(event events.ControllerEvent) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: TopicEvents(p.cfg.Prefix), payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	return p.publish(bufferedMsg{topic: TopicSystem(p.cfg.Prefix), payload: payload, qos: 1, retained: event.Retained})
}

var errNotConnected = errors.New("not connected, message buffered")

func (p *RealPublisher) publish(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		first := p.buffer.push(msg)
		p.mu.Unlock()
		if first {
			p.logger.Warn("Buffer full, dropping oldest messages", "capacity", p.cfg.BufferSize)
		}
		return errNotConnected
	}
	return p.send(msg)
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.cancel()
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
