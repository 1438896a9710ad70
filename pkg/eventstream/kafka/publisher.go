// Package kafka publishes session events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/docweave/weave/pkg/eventstream"
	"github.com/docweave/weave/pkg/logger"
)

// Writer is the subset of *kafkago.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config configures a Publisher.
type Config struct {
	Brokers []string
	Topic   string

	// WriteTimeout bounds a single publish. Zero means 10s.
	WriteTimeout time.Duration
}

// Publisher writes each event as one JSON message keyed by session ID, so
// events of one session land on one partition.
type Publisher struct {
	writer  Writer
	topic   string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = l
	}
}

// WithWriter replaces the Kafka writer, mainly for tests.
func WithWriter(w Writer) Option {
	return func(p *Publisher) {
		p.writer = w
	}
}

// NewPublisher creates a publisher for cfg.Topic on cfg.Brokers.
func NewPublisher(cfg Config, opts ...Option) (*Publisher, error) {
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	p := &Publisher{
		topic:   cfg.Topic,
		timeout: cfg.WriteTimeout,
		logger:  logger.Nop(),
	}
	if p.timeout <= 0 {
		p.timeout = 10 * time.Second
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.writer == nil {
		if len(cfg.Brokers) == 0 {
			return nil, errors.New("at least one kafka broker is required")
		}
		p.writer = &kafkago.Writer{
			Addr:                   kafkago.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			AllowAutoTopicCreation: true,
		}
	}

	return p, nil
}

// PublishSession writes event to the topic.
func (p *Publisher) PublishSession(ctx context.Context, event *eventstream.SessionEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling session event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafkago.Message{
		Key:   []byte(event.Session.ID),
		Value: value,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte(fmt.Sprint(event.SchemaVersion))},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing session event to %s: %w", p.topic, err)
	}

	p.logger.Debug("published session event",
		"topic", p.topic,
		"event_id", event.EventID,
		"session_id", event.Session.ID,
	)
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
