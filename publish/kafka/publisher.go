// Package kafka forwards committed contract events to Kafka. Each event is
// written as JSON to the topic "<prefix>.<event topic>", keyed by the
// emitting contract so that one contract's events stay ordered within a
// partition.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/xraph/settle/event"
	"github.com/xraph/settle/plugin"
)

// DefaultPrefix is prepended to every topic.
const DefaultPrefix = "settle"

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Publisher)(nil)
	_ plugin.OnEvent               = (*Publisher)(nil)
	_ plugin.OnInvocationCommitted = (*Publisher)(nil)
	_ plugin.OnShutdown            = (*Publisher)(nil)
)

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithPrefix sets the topic prefix.
func WithPrefix(prefix string) Option {
	return func(p *Publisher) { p.prefix = prefix }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// Publisher buffers the events of an invocation and writes them in one
// batch once the invocation is committed.
type Publisher struct {
	writer MessageWriter
	prefix string
	logger *slog.Logger

	mu      sync.Mutex
	pending []kafka.Message
}

// New creates a Publisher writing to brokers.
func New(brokers []string, opts ...Option) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return NewWithWriter(w, opts...)
}

// NewWithWriter creates a Publisher over an existing writer. The writer
// must not have a fixed Topic.
func NewWithWriter(w MessageWriter, opts ...Option) *Publisher {
	p := &Publisher{
		writer: w,
		prefix: DefaultPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements plugin.Plugin.
func (p *Publisher) Name() string { return "kafka-publisher" }

// Topic returns the Kafka topic for an event topic.
func (p *Publisher) Topic(t event.Topic) string {
	if p.prefix == "" {
		return string(t)
	}
	return p.prefix + "." + string(t)
}

// OnEvent implements plugin.OnEvent.
func (p *Publisher) OnEvent(_ context.Context, ev event.Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kafka: encode event %s: %w", ev.ID, err)
	}
	msg := kafka.Message{
		Topic: p.Topic(ev.Topic),
		Key:   []byte(ev.Contract),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(ev.ID.String())},
			{Key: "invocation_id", Value: []byte(ev.InvocationID.String())},
		},
	}

	p.mu.Lock()
	p.pending = append(p.pending, msg)
	p.mu.Unlock()
	return nil
}

// OnInvocationCommitted implements plugin.OnInvocationCommitted.
func (p *Publisher) OnInvocationCommitted(ctx context.Context, r plugin.Receipt) error {
	p.mu.Lock()
	msgs := p.pending
	p.pending = nil
	p.mu.Unlock()

	if len(msgs) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka: publish %d events of invocation %s: %w", len(msgs), r.InvocationID, err)
	}
	p.logger.Debug("kafka: events published",
		"invocation_id", r.InvocationID.String(),
		"events", len(msgs),
	)
	return nil
}

// OnShutdown implements plugin.OnShutdown.
func (p *Publisher) OnShutdown(_ context.Context) error {
	return p.writer.Close()
}
