package events

// =============================================================================
// KAFKA PUBLISHER - Stock movements on a topic
// =============================================================================
//
// PURPOSE:
// Publishes every committed ledger.Event as a JSON message so downstream
// consumers (stock dashboards, reorder jobs) can follow movements without
// polling the database.
//
// KEY CONCEPTS:
// - Messages are keyed by lot, so every movement of one lot lands on the
//   same partition in commit order.
// - The "event-type" header carries the ledger.EventType for consumers that
//   route without decoding the payload.
// - Publishing happens after commit. A failure here is reported to the
//   ledger, which logs it; the stock change stands.
//
// SEE ALSO:
// - ledger/events.go: Event, Notifier
// - events/log.go: fallback when no brokers are configured
//
// =============================================================================

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/warp/stock-ledger/ledger"
)

const (
	DefaultTopic   = "stock-events"
	publishTimeout = 5 * time.Second
	headerType     = "event-type"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
	}
	return &KafkaPublisher{writer: writer}
}

func message(e ledger.Event) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal %s event: %w", e.Type, err)
	}
	return kafka.Message{
		Key:   []byte(e.Key()),
		Value: value,
		Time:  e.At,
		Headers: []kafka.Header{
			{Key: headerType, Value: []byte(e.Type)},
		},
	}, nil
}

// Notify implements ledger.Notifier.
func (p *KafkaPublisher) Notify(ctx context.Context, e ledger.Event) error {
	msg, err := message(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write %s event to kafka: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
