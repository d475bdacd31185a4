package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type Sender interface {
	Send(email Email) error
}

// Processor handles email stream entries for the worker.
type Processor struct {
	sender Sender
	logger zerolog.Logger
}

func NewProcessor(sender Sender, logger zerolog.Logger) *Processor {
	return &Processor{
		sender: sender,
		logger: logger,
	}
}

// Handle returns nil for entries that can never succeed so the consumer
// acks them instead of reclaiming forever.
func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	payload, err := decodeMessage(msg.Values)
	if err != nil {
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping malformed email message")
		return nil
	}

	email, err := Render(payload)
	if err != nil {
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping unrenderable email message")
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := p.sender.Send(email); err != nil {
		return fmt.Errorf("deliver %s: %w", payload.Kind, err)
	}

	p.logger.Info().
		Str("type", string(payload.Kind)).
		Str("to", payload.To).
		Msg("email sent")
	return nil
}
