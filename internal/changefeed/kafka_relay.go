package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the part of *kafka.Writer the relay uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

// KafkaRelay publishes every change of a Feed as a JSON message keyed by
// topic and entity id.
type KafkaRelay struct {
	writer MessageWriter
	logger *zap.Logger
}

func NewKafkaRelay(writer MessageWriter, logger *zap.Logger) *KafkaRelay {
	return &KafkaRelay{writer: writer, logger: logger}
}

// Run blocks until ctx is done.
func (r *KafkaRelay) Run(ctx context.Context, feed *Feed) {
	changes, cancel := feed.Subscribe(256)
	defer cancel()

	r.logger.Info("Starting change feed relay")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping change feed relay")
			return
		case ch, ok := <-changes:
			if !ok {
				return
			}
			if err := r.publish(ctx, ch); err != nil {
				if ctx.Err() != nil {
					return
				}
				r.logger.Error("Failed to publish change",
					zap.String("topic", string(ch.Topic)),
					zap.Uint("entity_id", ch.EntityID),
					zap.Uint64("version", ch.Version),
					zap.Error(err),
				)
			}
		}
	}
}

func (r *KafkaRelay) publish(ctx context.Context, ch Change) error {
	value, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	return r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(string(ch.Topic) + ":" + strconv.FormatUint(uint64(ch.EntityID), 10)),
		Value: value,
	})
}

func (r *KafkaRelay) Close() error {
	return r.writer.Close()
}
