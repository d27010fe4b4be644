package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
)

// Writer limits. Publish runs inline with the request that produced the
// event, so a batch is flushed almost immediately and a slow broker fails the
// write instead of stalling the caller.
const (
	kafkaBatchTimeout  = 10 * time.Millisecond
	kafkaWriteTimeout  = 2 * time.Second
	kafkaMaxAttempts   = 3
	kafkaPublishBudget = 5 * time.Second
)

// KafkaPublisher writes events to a Kafka topic keyed by order id, so all
// events of one order land on the same partition in commit order.
type KafkaPublisher struct {
	w *kafka.Writer
}

// NewKafkaPublisher returns a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			BatchTimeout:           kafkaBatchTimeout,
			WriteTimeout:           kafkaWriteTimeout,
			ReadTimeout:            kafkaWriteTimeout,
			MaxAttempts:            kafkaMaxAttempts,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	msg := kafka.Message{
		Key:   []byte(e.OrderID),
		Value: value,
		Time:  e.OccurredAt,
	}
	ctx, cancel := context.WithTimeout(ctx, kafkaPublishBudget)
	defer cancel()
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "write %s", e.Type)
	}
	return nil
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
