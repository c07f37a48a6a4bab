package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Type enumerates the domain events emitted after a committed change.
type Type string

const (
	ScheduleCreated      Type = "schedule.created"
	ScheduleMoved        Type = "schedule.moved"
	ScheduleTransitioned Type = "schedule.transitioned"
	DailyTickApplied     Type = "schedule.daily_tick"
	BulkAssignCompleted  Type = "schedule.bulk_assigned"
)

// Payload is the event body.
type Payload map[string]interface{}

// Publisher delivers events to notification collaborators. Delivery is best effort: the
// state change has already committed when Publish is called.
type Publisher interface {
	Publish(ctx context.Context, eventType Type, payload Payload) error
	Close() error
}

// Envelope is the wire format of every published message.
type Envelope struct {
	EventType Type      `json:"event_type"`
	Payload   Payload   `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id"`
	MessageID string    `json:"message_id"`
}

// Config configures the NATS publisher.
type Config struct {
	URL           string
	SubjectPrefix string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// NATSPublisher publishes envelopes on "<prefix>.<event type>" subjects.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	nodeID string
	logger *zap.Logger
}

// New returns a NATS publisher, or a no-op publisher when no URL is configured.
func New(cfg Config, logger *zap.Logger) (Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.URL) == "" {
		logger.Info("event publishing disabled, NATS_URL not set")
		return NopPublisher{}, nil
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "maintenance-slot-api"
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	return &NATSPublisher{
		conn:   conn,
		prefix: strings.Trim(cfg.SubjectPrefix, "."),
		nodeID: nodeID(),
		logger: logger,
	}, nil
}

// Publish marshals the envelope and hands it to the connection buffer.
func (p *NATSPublisher) Publish(ctx context.Context, eventType Type, payload Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Marshal(eventType, payload, p.nodeID)
	if err != nil {
		return err
	}
	subject := Subject(p.prefix, eventType)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

// Subject builds the NATS subject for an event type.
func Subject(prefix string, eventType Type) string {
	if prefix == "" {
		return string(eventType)
	}
	return prefix + "." + string(eventType)
}

// Marshal encodes an envelope.
func Marshal(eventType Type, payload Payload, node string) ([]byte, error) {
	data, err := json.Marshal(Envelope{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    node,
		MessageID: uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", eventType, err)
	}
	return data, nil
}

// Unmarshal decodes an envelope.
func Unmarshal(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &env, nil
}

func nodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "node"
	}
	return host + "-" + uuid.NewString()[:8]
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Type, Payload) error { return nil }
func (NopPublisher) Close() error                                 { return nil }
