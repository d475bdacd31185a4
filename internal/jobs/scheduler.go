package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ResetTokenPurger clears reset tokens whose expiry has passed.
type ResetTokenPurger interface {
	PurgeExpiredResetTokens(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron   *cron.Cron
	purger ResetTokenPurger
	log    zerolog.Logger
}

func NewScheduler(purger ResetTokenPurger, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:   c,
		purger: purger,
		log:    log,
	}
}

func (s *Scheduler) Start() error {
	if s.purger == nil {
		return nil
	}

	if _, err := s.cron.AddFunc("0 0 */1 * * *", s.PurgeResetTokens); err != nil { // hourly
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for a running job to finish, up to five seconds.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) PurgeResetTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cleared, err := s.purger.PurgeExpiredResetTokens(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("purge expired reset tokens failed")
		return
	}
	if cleared > 0 {
		s.log.Info().Int64("cleared", cleared).Msg("expired reset tokens purged")
	}
}
