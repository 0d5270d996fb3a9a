package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// KafkaSink publishes deletion events to a Kafka topic, one message per
// deleted fingerprint, keyed by video id.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates a sink writing to the given brokers and topic
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaSink{writer: writer}
}

// PublishDeletion writes one deletion event and waits for broker acks.
func (s *KafkaSink) PublishDeletion(ctx context.Context, event DeletionEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode deletion event: %w", err)
	}
	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.VideoID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish deletion event: %w", err)
	}
	log.Debug().
		Str("videoID", event.VideoID).
		Str("url", event.URL).
		Msg("Published media deletion event")
	return nil
}

// Close closes the Kafka writer
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
