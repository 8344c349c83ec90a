package sinks

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
)

// MessageWriter abstracts kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the Kafka writer built by NewKafkaWriter.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	// Events limits which event types are published; empty means all.
	Events []crawler.EventType
}

// NewKafkaWriter builds a kafka.Writer for cfg.
func NewKafkaWriter(cfg KafkaConfig) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
	}, nil
}

// KafkaSink publishes lifecycle events to Kafka, keyed by job ID so one job's
// events land on one partition in order.
type KafkaSink struct {
	writer MessageWriter
	filter eventFilter
}

// NewKafkaSink wraps writer. events limits the forwarded event types.
func NewKafkaSink(writer MessageWriter, events []crawler.EventType) (*KafkaSink, error) {
	if writer == nil {
		return nil, fmt.Errorf("kafka writer is required")
	}
	return &KafkaSink{writer: writer, filter: newEventFilter(events)}, nil
}

// Consume writes the batch in a single WriteMessages call.
func (s *KafkaSink) Consume(ctx context.Context, batch []crawler.Event) error {
	msgs := make([]kafka.Message, 0, len(batch))
	for _, evt := range batch {
		if !s.filter.allows(evt.Type) {
			continue
		}
		value, err := encodeEvent(evt)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(evt.JobID),
			Value: value,
			Time:  evt.TS,
			Headers: []kafka.Header{
				{Key: "event-type", Value: []byte(evt.Type)},
			},
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write kafka messages: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (s *KafkaSink) Close(context.Context) error {
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}
