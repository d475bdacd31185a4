package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"touris/api/internal/config"
	"touris/api/internal/repository/repofake"
	"touris/api/internal/security"
	"touris/api/internal/service"
)

type stubPurger struct {
	calls int
	err   error
}

func (p *stubPurger) PurgeExpiredResetTokens(context.Context) (int64, error) {
	p.calls++
	return 2, p.err
}

func TestPurgeResetTokensCallsPurger(t *testing.T) {
	purger := &stubPurger{}
	scheduler := NewScheduler(purger, zerolog.Nop())

	scheduler.PurgeResetTokens()

	assert.Equal(t, 1, purger.calls)
}

func TestPurgeResetTokensSwallowsErrors(t *testing.T) {
	purger := &stubPurger{err: errors.New("db down")}
	scheduler := NewScheduler(purger, zerolog.Nop())

	assert.NotPanics(t, scheduler.PurgeResetTokens)
}

func TestStartRegistersHourlyJob(t *testing.T) {
	scheduler := NewScheduler(&stubPurger{}, zerolog.Nop())
	require.NoError(t, scheduler.Start())
	defer scheduler.Stop()

	assert.Len(t, scheduler.cron.Entries(), 1)
}

func TestPurgeResetTokensClearsExpiredTokens(t *testing.T) {
	cfg := &config.AppConfig{
		Security: config.SecurityConfig{
			JWTAccessSecret:  "access-secret",
			JWTRefreshSecret: "refresh-secret",
			JWTAccessTTL:     15 * time.Minute,
			JWTRefreshTTL:    time.Hour,
			ResetTokenTTL:    30 * time.Minute,
			BcryptCost:       bcrypt.MinCost,
		},
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	users := repofake.NewUserRepo()
	tokens := security.NewTokenIssuer(security.TokenConfigFrom(cfg.Security)).WithClock(clock)
	auth := service.NewAuthService(users, repofake.NewPartnerRepo(), tokens, nil, cfg, zerolog.Nop()).WithClock(clock)

	ctx := context.Background()
	_, err := auth.Register(ctx, service.RegisterInput{Email: "alice@example.com", Password: "Passw0rd!"})
	require.NoError(t, err)
	_, err = auth.RequestPasswordReset(ctx, "alice@example.com")
	require.NoError(t, err)

	now = now.Add(time.Hour)
	NewScheduler(auth, zerolog.Nop()).PurgeResetTokens()

	user, err := users.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Nil(t, user.ResetToken)
	assert.Nil(t, user.ResetTokenExpires)
}
