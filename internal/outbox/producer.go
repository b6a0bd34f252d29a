package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrUnknownTopic is returned for a topic the producer was not built for.
var ErrUnknownTopic = errors.New("outbox: topic not configured for publishing")

// KafkaProducer holds one synchronous writer per activity topic. Records are
// hashed on their key, so every event of a tenant's resource lands on the same
// partition and consumers see a resource's day in commit order.
type KafkaProducer struct {
	writers map[string]*kafka.Writer
}

// NewKafkaProducer builds writers for topics up front.
func NewKafkaProducer(brokers []string, topics ...string) *KafkaProducer {
	p := &KafkaProducer{writers: make(map[string]*kafka.Writer, len(topics))}
	for _, topic := range topics {
		p.writers[topic] = &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Compression:  kafka.Snappy,
			BatchTimeout: 10 * time.Millisecond,
		}
	}
	return p
}

// WriteMessages publishes msgs to topic and waits for all replicas to acknowledge.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	writer, ok := p.writers[topic]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	return writer.WriteMessages(ctx, msgs...)
}

// Close flushes and releases every writer.
func (p *KafkaProducer) Close() error {
	var errs []error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer %s: %w", topic, err))
		}
	}
	return errors.Join(errs...)
}
