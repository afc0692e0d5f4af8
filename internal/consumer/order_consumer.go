// Package consumer feeds order events from Kafka into the usage reconciler.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/spin-reward-engine/internal/model"
	"github.com/fairyhunter13/spin-reward-engine/internal/service"
)

// DefaultTopic carries one event per durably placed order.
const DefaultTopic = "orders.placed"

// Reader is the subset of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Reconciler consumes coupon usage for an order.
type Reconciler interface {
	Consume(ctx context.Context, orderID string, couponID uuid.UUID, subject model.Subject) (*service.ConsumeResult, error)
}

// Options tune an OrderConsumer.
type Options struct {
	// BatchSize is how many messages are handled concurrently.
	BatchSize int
	// BatchWait is how long to wait for a batch to fill once it has a message.
	BatchWait time.Duration
	// MinBackoff and MaxBackoff bound the retry delay after store failures.
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// OrderConsumer reads order events and consumes their coupons. Offsets are
// committed only after every message of a batch is handled, so a crash
// redelivers; redelivery is harmless because consumption is keyed by order.
type OrderConsumer struct {
	reader     Reader
	reconciler Reconciler
	opts       Options
}

// NewReader returns a group reader for topic on brokers.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	if topic == "" {
		topic = DefaultTopic
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// NewOrderConsumer creates an OrderConsumer. Zero options get defaults.
func NewOrderConsumer(reader Reader, reconciler Reconciler, opts Options) *OrderConsumer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5
	}
	if opts.BatchWait <= 0 {
		opts.BatchWait = 100 * time.Millisecond
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 200 * time.Millisecond
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = 10 * time.Second
	}
	return &OrderConsumer{reader: reader, reconciler: reconciler, opts: opts}
}

// Run consumes until ctx is cancelled or the reader fails. A cancelled
// context is a clean stop and returns nil.
func (c *OrderConsumer) Run(ctx context.Context) error {
	for {
		batch, err := c.fetchBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, msg := range batch {
			g.Go(func() error {
				return c.handle(gctx, msg)
			})
		}
		if err := g.Wait(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.reader.CommitMessages(ctx, batch...); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// fetchBatch blocks for the first message, then collects more for at most
// BatchWait.
func (c *OrderConsumer) fetchBatch(ctx context.Context) ([]kafka.Message, error) {
	first, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	batch := []kafka.Message{first}

	wctx, cancel := context.WithTimeout(ctx, c.opts.BatchWait)
	defer cancel()
	for len(batch) < c.opts.BatchSize {
		msg, err := c.reader.FetchMessage(wctx)
		if err != nil {
			break
		}
		batch = append(batch, msg)
	}
	return batch, nil
}

// handle returns an error only when ctx ends before the message is handled.
func (c *OrderConsumer) handle(ctx context.Context, msg kafka.Message) error {
	var ev model.OrderPlacedEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		log.Error().Err(err).Int64("offset", msg.Offset).Msg("skipping undecodable order event")
		return nil
	}
	if ev.CouponID == "" {
		return nil
	}
	couponID, err := uuid.Parse(ev.CouponID)
	if err != nil {
		log.Error().Err(err).Str("order_id", ev.OrderID).Msg("skipping order event with malformed coupon id")
		return nil
	}
	subject := model.Subject{UserID: ev.UserID, GuestID: ev.GuestID}

	backoff := c.opts.MinBackoff
	for {
		res, err := c.reconciler.Consume(ctx, ev.OrderID, couponID, subject)
		switch {
		case err == nil:
			log.Info().
				Str("order_id", ev.OrderID).
				Str("coupon_code", res.CouponCode).
				Bool("duplicate", res.AlreadyConsumed).
				Msg("order coupon consumed")
			return nil
		case errors.Is(err, service.ErrLimitExceeded):
			return nil
		case errors.Is(err, service.ErrInvalidRequest):
			log.Error().Str("order_id", ev.OrderID).Msg("skipping invalid order event")
			return nil
		case errors.Is(err, service.ErrCouponNotFound):
			log.Error().Str("order_id", ev.OrderID).Str("coupon_id", ev.CouponID).Msg("skipping order event for unknown coupon")
			return nil
		}

		log.Warn().Err(err).Str("order_id", ev.OrderID).Dur("backoff", backoff).Msg("coupon consumption failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.opts.MaxBackoff {
			backoff = c.opts.MaxBackoff
		}
	}
}
