// Package events publishes room lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lishuceo/draw-and-guess/domain"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON keyed by room id, so the events of one room land on
// one partition in order.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warn().Err(err).Int("count", len(messages)).Msg("failed to deliver events")
			}
		},
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e domain.Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.RoomID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	})
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
