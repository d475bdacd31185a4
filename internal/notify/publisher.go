package notify

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// StreamPublisher hands emails to the worker through a redis stream so
// request handlers never wait on SMTP.
type StreamPublisher struct {
	client *redis.Client
	stream string
}

func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream}
}

func (p *StreamPublisher) Publish(ctx context.Context, msg Message) error {
	values, err := msg.values()
	if err != nil {
		return err
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: 10000,
		Approx: true,
		Values: values,
	}).Err()
}
