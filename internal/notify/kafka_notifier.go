// Package notify publishes user notifications to Kafka for the notification
// service to deliver.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
)

// DefaultTopic is where notifications are published.
const DefaultTopic = "reward.notifications"

// Writer is the subset of *kafka.Writer the notifier uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier sends notifications as JSON messages keyed by user id, so
// one user's notifications stay ordered.
type KafkaNotifier struct {
	writer Writer
}

// NewKafkaNotifier creates a KafkaNotifier over writer.
func NewKafkaNotifier(writer Writer) *KafkaNotifier {
	return &KafkaNotifier{writer: writer}
}

// NewWriter returns a writer for topic on brokers. Writes are async: the
// notifier never waits on the broker.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
	}
}

// Notify publishes n.
func (k *KafkaNotifier) Notify(ctx context.Context, n model.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(n.UserID),
		Value: payload,
	}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{msg: &msg})

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s notification: %w", n.Type, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}

// headerCarrier lets the trace propagator write into message headers.
type headerCarrier struct {
	msg *kafka.Message
}

func (c headerCarrier) Get(key string) string {
	for _, h := range c.msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range c.msg.Headers {
		if h.Key == key {
			c.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}
