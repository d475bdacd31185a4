package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg redis.XMessage) error
}

const defaultMaxDeliveries = 5

// Consumer reads a stream through a consumer group. Entries whose handler
// fails stay pending and are reclaimed once idle for claimInterval, until
// they have been delivered maxDeliveries times. After that they are copied
// to the dead-letter stream and acked.
type Consumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	claimInterval time.Duration
	maxDeliveries int64
	logger        zerolog.Logger
	handler       MessageHandler
}

func NewConsumer(client *redis.Client, stream, group, consumer string, claimInterval time.Duration, logger zerolog.Logger, handler MessageHandler) *Consumer {
	if claimInterval <= 0 {
		claimInterval = 30 * time.Second
	}
	return &Consumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		claimInterval: claimInterval,
		maxDeliveries: defaultMaxDeliveries,
		logger:        logger,
		handler:       handler,
	}
}

// WithMaxDeliveries overrides the delivery cap. Values below one keep the
// default.
func (c *Consumer) WithMaxDeliveries(n int64) *Consumer {
	if n > 0 {
		c.maxDeliveries = n
	}
	return c
}

// DeadLetterStream is where exhausted messages end up.
func (c *Consumer) DeadLetterStream() string {
	return c.stream + ":dead"
}

// EnsureGroup creates the stream and group on first start.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s on %s: %w", c.group, c.stream, err)
	}
	return nil
}

func (c *Consumer) Start(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(c.claimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := c.read(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error().Err(err).Msg("stream read error")
				sleep(ctx, 2*time.Second)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.claimStalled(ctx); err != nil {
				c.logger.Error().Err(err).Msg("claim stalled messages failed")
			}
		default:
		}
	}
}

func (c *Consumer) read(ctx context.Context) error {
	result, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    10,
		Block:    5 * time.Second,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	for _, stream := range result {
		for _, msg := range stream.Messages {
			c.process(ctx, msg)
		}
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage) {
	if err := c.handler.Handle(ctx, msg); err != nil {
		c.logger.Error().
			Err(err).
			Str("message_id", msg.ID).
			Msg("handle message failed")
		return
	}
	if err := c.client.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("ack failed")
	}
}

func (c *Consumer) claimStalled(ctx context.Context) error {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream,
		Group:  c.group,
		Idle:   c.claimInterval,
		Start:  "-",
		End:    "+",
		Count:  10,
	}).Result()
	if err != nil {
		return err
	}

	retry, exhausted := splitPending(pending, c.maxDeliveries)

	for _, id := range exhausted {
		if err := c.deadLetter(ctx, id); err != nil {
			c.logger.Error().Err(err).Str("message_id", id).Msg("dead-letter failed")
		}
	}

	for _, id := range retry {
		msgs, err := c.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   c.stream,
			Group:    c.group,
			Consumer: c.consumer,
			MinIdle:  c.claimInterval,
			Messages: []string{id},
		}).Result()
		if err != nil {
			c.logger.Error().Err(err).Str("message_id", id).Msg("claim error")
			continue
		}
		for _, msg := range msgs {
			c.process(ctx, msg)
		}
	}
	return nil
}

// deadLetter copies a message to the dead-letter stream and acks it so it is
// not claimed again.
func (c *Consumer) deadLetter(ctx context.Context, id string) error {
	msgs, err := c.client.XRangeN(ctx, c.stream, id, id, 1).Result()
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		values := make(map[string]any, len(msg.Values)+1)
		for k, v := range msg.Values {
			values[k] = v
		}
		values["original_id"] = msg.ID
		if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.DeadLetterStream(), Values: values}).Err(); err != nil {
			return err
		}
	}
	if err := c.client.XAck(ctx, c.stream, c.group, id).Err(); err != nil {
		return err
	}
	c.logger.Warn().Str("message_id", id).Int64("max_deliveries", c.maxDeliveries).Msg("message moved to dead-letter stream")
	return nil
}

// splitPending separates entries that may be retried from those already
// delivered limit times.
func splitPending(pending []redis.XPendingExt, limit int64) (retry, exhausted []string) {
	for _, entry := range pending {
		if entry.RetryCount >= limit {
			exhausted = append(exhausted, entry.ID)
			continue
		}
		retry = append(retry, entry.ID)
	}
	return retry, exhausted
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
