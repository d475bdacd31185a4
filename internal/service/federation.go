package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"touris/api/internal/ids"
	"touris/api/internal/models"
	"touris/api/internal/notify"
	"touris/api/internal/oauth"
	"touris/api/internal/repository"
)

// IdentityVerifier checks a third-party ID token and returns its claims.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (oauth.GoogleIdentity, error)
}

// FederationService exchanges Google ID tokens for local sessions. The
// Google token is never accepted again after the exchange.
type FederationService struct {
	auth     *AuthService
	verifier IdentityVerifier
	log      zerolog.Logger
}

func NewFederationService(auth *AuthService, verifier IdentityVerifier, log zerolog.Logger) *FederationService {
	return &FederationService{
		auth:     auth,
		verifier: verifier,
		log:      log,
	}
}

type FederatedLogin struct {
	Session
	IsNewUser bool
}

func (s *FederationService) GoogleLogin(ctx context.Context, rawIDToken string) (FederatedLogin, error) {
	if s.verifier == nil {
		return FederatedLogin{}, fmt.Errorf("%w: google sign-in is not configured", ErrFederatedTokenInvalid)
	}
	if rawIDToken == "" {
		return FederatedLogin{}, ErrFederatedTokenInvalid
	}

	identity, err := s.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		s.log.Warn().Err(err).Msg("google id token rejected")
		return FederatedLogin{}, ErrFederatedTokenInvalid
	}
	if identity.Subject == "" || identity.Email == "" {
		return FederatedLogin{}, ErrFederatedTokenInvalid
	}
	if !identity.EmailVerified {
		return FederatedLogin{}, ErrEmailNotVerified
	}

	email := normalizeEmail(identity.Email)
	users := s.auth.users

	user, err := users.FindByGoogleIDOrEmail(ctx, identity.Subject, email)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		user, err = s.createFederated(ctx, identity, email)
		if err != nil {
			return FederatedLogin{}, err
		}
		session, err := s.auth.userSession(ctx, user)
		if err != nil {
			return FederatedLogin{}, err
		}
		return FederatedLogin{Session: session, IsNewUser: true}, nil
	case err != nil:
		return FederatedLogin{}, fmt.Errorf("find federated user: %w", err)
	}

	if user.GoogleID == nil {
		user, err = s.link(ctx, user, identity)
		if err != nil {
			return FederatedLogin{}, err
		}
	} else if *user.GoogleID != identity.Subject {
		// Same email, different Google account.
		s.log.Warn().Str("user_id", user.ID).Msg("email already bound to another google account")
		return FederatedLogin{}, ErrAccountConflict
	}

	session, err := s.auth.userSession(ctx, user)
	if err != nil {
		return FederatedLogin{}, err
	}
	return FederatedLogin{Session: session}, nil
}

// UnlinkGoogle detaches the Google identity. The account must keep a local
// password, otherwise it would be left with no way to sign in.
func (s *FederationService) UnlinkGoogle(ctx context.Context, principal models.Principal) (models.User, error) {
	if principal.IsPartner() {
		return models.User{}, ErrForbidden
	}

	users := s.auth.users
	user, err := users.GetByID(ctx, principal.ID)
	if err != nil {
		return models.User{}, mapNotFound(err)
	}
	if user.GoogleID == nil {
		return models.User{}, ErrNoLinkedAccount
	}
	if !user.HasPassword() {
		return models.User{}, ErrPasswordRequired
	}

	if err := users.SetGoogleLink(ctx, user.ID, nil, models.ProviderLocal, nil); err != nil {
		return models.User{}, fmt.Errorf("unlink google: %w", err)
	}
	user.GoogleID = nil
	user.Provider = models.ProviderLocal

	s.log.Info().Str("user_id", user.ID).Msg("google account unlinked")
	return user, nil
}

func (s *FederationService) createFederated(ctx context.Context, identity oauth.GoogleIdentity, email string) (models.User, error) {
	subject := identity.Subject
	user := models.User{
		ID:             ids.New(),
		Email:          email,
		FirstName:      identity.GivenName,
		LastName:       identity.FamilyName,
		Role:           models.UserRoleUser,
		GoogleID:       &subject,
		Provider:       models.ProviderGoogle,
		ProfilePicture: optional(identity.Picture),
	}
	if err := s.auth.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) || errors.Is(err, repository.ErrGoogleIDExists) {
			return models.User{}, ErrAccountConflict
		}
		return models.User{}, fmt.Errorf("create federated user: %w", err)
	}

	s.auth.publish(ctx, notify.Message{Kind: notify.KindWelcome, To: user.Email, Name: user.FullName()})
	s.log.Info().Str("user_id", user.ID).Msg("user created from google sign-in")
	return user, nil
}

// link binds the Google subject to an existing local account. Any password
// is kept; the Google picture is only adopted when the user has none.
func (s *FederationService) link(ctx context.Context, user models.User, identity oauth.GoogleIdentity) (models.User, error) {
	subject := identity.Subject
	var picture *string
	if user.ProfilePicture == nil {
		picture = optional(identity.Picture)
	}

	if err := s.auth.users.SetGoogleLink(ctx, user.ID, &subject, models.ProviderGoogle, picture); err != nil {
		if errors.Is(err, repository.ErrGoogleIDExists) {
			return models.User{}, ErrAccountConflict
		}
		return models.User{}, fmt.Errorf("link google: %w", err)
	}

	user.GoogleID = &subject
	user.Provider = models.ProviderGoogle
	if picture != nil {
		user.ProfilePicture = picture
	}

	s.log.Info().Str("user_id", user.ID).Msg("google account linked")
	return user, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
