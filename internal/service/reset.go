package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"touris/api/internal/notify"
	"touris/api/internal/repository"
	"touris/api/internal/security"
)

// ResetTicket carries the raw token back to the caller. Handlers only expose
// it outside production.
type ResetTicket struct {
	Token     string
	ExpiresAt time.Time
}

// RequestPasswordReset stores a fresh reset token for a known email and
// queues the email. Unknown emails return a zero ticket and no error so the
// response is identical either way.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (ResetTicket, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ResetTicket{}, nil
		}
		return ResetTicket{}, fmt.Errorf("find user: %w", err)
	}

	token, err := security.GenerateResetToken()
	if err != nil {
		return ResetTicket{}, err
	}
	expires := s.now().Add(s.cfg.Security.ResetTokenTTL)

	if err := s.users.SetResetToken(ctx, user.ID, security.HashToken(token), expires); err != nil {
		return ResetTicket{}, fmt.Errorf("store reset token: %w", err)
	}

	s.publish(ctx, notify.Message{
		Kind:      notify.KindPasswordReset,
		To:        user.Email,
		Name:      user.FullName(),
		Link:      resetLink(s.cfg.Notify.ResetURL, token),
		ExpiresAt: expires,
	})

	s.log.Info().Str("user_id", user.ID).Msg("password reset requested")
	return ResetTicket{Token: token, ExpiresAt: expires}, nil
}

// ResetPassword consumes a reset token. The password swap and token clear
// happen in one conditional update, so a token works at most once.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrResetTokenInvalid
	}
	if newPassword == "" {
		return validationError("new password is required")
	}

	passwordHash, err := hashPassword(s.hasher, newPassword)
	if err != nil {
		return err
	}

	userID, err := s.users.ConsumeResetToken(ctx, security.HashToken(token), s.now(), passwordHash)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("consume reset token: %w", err)
	}

	// Sessions opened before the reset must not survive it.
	if err := s.users.SetRefreshTokenHash(ctx, userID, nil); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("revoke refresh token after reset failed")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user after reset: %w", err)
	}
	if err := s.syncPartnerPassword(ctx, user, passwordHash, true); err != nil {
		return err
	}

	s.log.Info().Str("user_id", userID).Msg("password reset completed")
	return nil
}

// PurgeExpiredResetTokens clears reset tokens that can no longer be used.
func (s *AuthService) PurgeExpiredResetTokens(ctx context.Context) (int64, error) {
	return s.users.ClearExpiredResetTokens(ctx, s.now())
}

func resetLink(base, token string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
