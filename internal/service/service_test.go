package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"touris/api/internal/config"
	"touris/api/internal/notify"
	"touris/api/internal/oauth"
	"touris/api/internal/repository/repofake"
	"touris/api/internal/security"
	"touris/api/internal/service"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
	err      error
}

func (n *recordingNotifier) Publish(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.messages = append(n.messages, msg)
	return nil
}

func (n *recordingNotifier) last() notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.messages[len(n.messages)-1]
}

type stubVerifier map[string]oauth.GoogleIdentity

func (v stubVerifier) Verify(_ context.Context, raw string) (oauth.GoogleIdentity, error) {
	identity, ok := v[raw]
	if !ok {
		return oauth.GoogleIdentity{}, errors.New("signature mismatch")
	}
	return identity, nil
}

type fixture struct {
	cfg        *config.AppConfig
	clock      *fakeClock
	users      *repofake.UserRepo
	partners   *repofake.PartnerRepo
	tokens     *security.TokenIssuer
	notifier   *recordingNotifier
	auth       *service.AuthService
	accounts   *service.AccountService
	federation *service.FederationService
	uploads    *memoryUploader
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Environment: "test",
		Security: config.SecurityConfig{
			JWTAccessSecret:  "access-secret",
			JWTRefreshSecret: "refresh-secret",
			JWTAccessTTL:     15 * time.Minute,
			JWTRefreshTTL:    7 * 24 * time.Hour,
			JWTIssuer:        "touris-api",
			JWTAudience:      "touris-client",
			ResetTokenTTL:    30 * time.Minute,
			BcryptCost:       bcrypt.MinCost,
			AdminBcryptCost:  bcrypt.MinCost + 1,
		},
		Storage: config.StorageConfig{MaxUploadSize: 1 << 20},
		Notify:  config.NotifyConfig{ResetURL: "http://localhost:3000/reset-password"},
	}
}

func newFixture(t *testing.T, verifier service.IdentityVerifier) *fixture {
	t.Helper()

	cfg := testConfig()
	clock := newFakeClock()
	users := repofake.NewUserRepo()
	partners := repofake.NewPartnerRepo()
	notifier := &recordingNotifier{}
	uploads := &memoryUploader{}
	logger := zerolog.Nop()

	tokens := security.NewTokenIssuer(security.TokenConfig{
		AccessSecret:  cfg.Security.JWTAccessSecret,
		RefreshSecret: cfg.Security.JWTRefreshSecret,
		AccessTTL:     cfg.Security.JWTAccessTTL,
		RefreshTTL:    cfg.Security.JWTRefreshTTL,
		Issuer:        cfg.Security.JWTIssuer,
		Audience:      cfg.Security.JWTAudience,
	}).WithClock(clock.Now)

	auth := service.NewAuthService(users, partners, tokens, notifier, cfg, logger).WithClock(clock.Now)

	return &fixture{
		cfg:        cfg,
		clock:      clock,
		users:      users,
		partners:   partners,
		tokens:     tokens,
		notifier:   notifier,
		auth:       auth,
		accounts:   service.NewAccountService(users, partners, uploads, cfg, logger),
		federation: service.NewFederationService(auth, verifier, logger),
		uploads:    uploads,
	}
}

func (f *fixture) register(t *testing.T, input service.RegisterInput) service.Session {
	t.Helper()
	session, err := f.auth.Register(context.Background(), input)
	require.NoError(t, err)
	return session
}
