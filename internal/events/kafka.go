package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes updates to a topic keyed by session id, so all
// updates of one session land on the same partition in order.
type KafkaPublisher struct {
	topic  string
	writer messageWriter
}

// NewKafkaPublisher builds a synchronous writer. batchTimeout bounds how
// long a single update waits for its batch to fill; <= 0 uses 10ms.
func NewKafkaPublisher(brokers []string, topic string, batchTimeout time.Duration) *KafkaPublisher {
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	return &KafkaPublisher{
		topic: topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: batchTimeout,
			Async:        false,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, u Update) error {
	value, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("update JSON 생성 실패: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(u.SessionID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "update_type", Value: []byte(u.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
