package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"touris/api/internal/config"
	"touris/api/internal/ids"
	"touris/api/internal/models"
	"touris/api/internal/notify"
	"touris/api/internal/repository"
	"touris/api/internal/security"
)

// Notifier queues outbound email. Callers never wait for delivery.
type Notifier interface {
	Publish(ctx context.Context, msg notify.Message) error
}

type AuthService struct {
	users    repository.UserStore
	partners repository.PartnerStore
	tokens   *security.TokenIssuer
	hasher   security.Hasher
	notifier Notifier
	cfg      *config.AppConfig
	log      zerolog.Logger
	now      func() time.Time
}

func NewAuthService(
	users repository.UserStore,
	partners repository.PartnerStore,
	tokens *security.TokenIssuer,
	notifier Notifier,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		partners: partners,
		tokens:   tokens,
		hasher:   security.NewHasher(cfg.Security.BcryptCost),
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// WithClock replaces the time source used for reset token expiry.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Session is the outcome of every successful sign-in. Exactly one of User or
// Partner is set, matching Principal.Kind.
type Session struct {
	Principal    models.Principal
	AccessToken  security.Token
	RefreshToken security.Token
	User         *models.User
	Partner      *models.Partner
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Country   *string
	Role      models.UserRole
}

// Register creates a local account and signs it in. A PARTNER registration
// also opens a PENDING partner record sharing the email and password.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (Session, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return Session{}, validationError("email and password are required")
	}

	role := input.Role
	if role == "" {
		role = models.UserRoleUser
	}
	if role != models.UserRoleUser && role != models.UserRolePartner {
		return Session{}, validationError("role %q cannot be self-assigned", role)
	}

	if err := s.ensureEmailFree(ctx, email, role == models.UserRolePartner); err != nil {
		return Session{}, err
	}

	passwordHash, err := hashPassword(s.hasher, input.Password)
	if err != nil {
		return Session{}, err
	}

	user := models.User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: &passwordHash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Country:      input.Country,
		Role:         role,
		Provider:     models.ProviderLocal,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return Session{}, ErrAccountConflict
		}
		return Session{}, fmt.Errorf("create user: %w", err)
	}

	if role == models.UserRolePartner {
		if err := createPartnerRecord(ctx, s.partners, user, models.PartnerStatusPending); err != nil {
			if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
				s.log.Error().Err(delErr).Str("user_id", user.ID).Msg("rollback user after partner create failed")
			}
			return Session{}, err
		}
	}

	s.publish(ctx, notify.Message{Kind: notify.KindWelcome, To: user.Email, Name: user.FullName()})

	s.log.Info().Str("user_id", user.ID).Str("role", string(role)).Msg("user registered")
	return s.userSession(ctx, user)
}

// Login signs in any local user regardless of role.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.authenticateUser(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return s.userSession(ctx, user)
}

// LoginAdmin checks the role only after the password, so the response does
// not reveal which accounts are admins.
func (s *AuthService) LoginAdmin(ctx context.Context, email, password string) (Session, error) {
	user, err := s.authenticateUser(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	if user.Role != models.UserRoleAdmin {
		s.log.Warn().Str("user_id", user.ID).Msg("non-admin attempted admin login")
		return Session{}, ErrForbidden
	}
	return s.userSession(ctx, user)
}

func (s *AuthService) LoginPartner(ctx context.Context, email, password string) (Session, error) {
	partner, err := s.partners.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrPartnerNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("find partner: %w", err)
	}
	if !s.hasher.VerifyPtr(password, partner.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}
	if partner.Status != models.PartnerStatusApproved {
		return Session{}, &PendingApprovalError{Status: partner.Status}
	}

	session, err := s.issue(ctx, partner.Principal())
	if err != nil {
		return Session{}, err
	}
	session.Partner = &partner
	return session, nil
}

// Refresh mints a new access token from a refresh token that is still the
// one stored for its principal. The refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, raw string) (Session, error) {
	if raw == "" {
		return Session{}, ErrRefreshInvalid
	}

	claims, err := s.tokens.ParseRefresh(raw)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			s.log.Debug().Msg("refresh token expired")
			return Session{}, ErrRefreshExpired
		}
		s.log.Warn().Err(err).Msg("malformed refresh token presented")
		return Session{}, ErrRefreshInvalid
	}

	principal, stored, err := s.lookupRefresh(ctx, claims.UserID, claims.Kind)
	if err != nil {
		return Session{}, err
	}
	if !security.TokenMatches(raw, stored) {
		s.log.Warn().Str("principal_id", principal.ID).Msg("superseded refresh token presented")
		return Session{}, ErrRefreshInvalid
	}

	access, err := s.tokens.IssueAccess(principal.ID, principal.Email, principal.Role, principal.Kind)
	if err != nil {
		return Session{}, err
	}
	return Session{Principal: principal, AccessToken: access}, nil
}

// Logout revokes the stored refresh token. Repeating it is harmless.
func (s *AuthService) Logout(ctx context.Context, principal models.Principal) error {
	err := s.storeRefresh(ctx, principal, nil)
	if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, repository.ErrPartnerNotFound) {
		return nil
	}
	return err
}

// Profile is what /me reports for the current principal.
type Profile struct {
	User    *models.User
	Partner *models.Partner
}

func (s *AuthService) Me(ctx context.Context, principal models.Principal) (Profile, error) {
	if principal.IsPartner() {
		partner, err := s.partners.GetByID(ctx, principal.ID)
		if err != nil {
			return Profile{}, mapNotFound(err)
		}
		return Profile{Partner: &partner}, nil
	}

	user, err := s.users.GetByID(ctx, principal.ID)
	if err != nil {
		return Profile{}, mapNotFound(err)
	}
	return Profile{User: &user}, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, principal models.Principal, current, next string) error {
	if principal.IsPartner() {
		return ErrForbidden
	}
	if next == "" {
		return validationError("new password is required")
	}

	user, err := s.users.GetByID(ctx, principal.ID)
	if err != nil {
		return mapNotFound(err)
	}
	if !user.HasPassword() {
		return ErrPasswordRequired
	}
	if !s.hasher.VerifyPtr(current, user.PasswordHash) {
		return ErrInvalidCurrentPassword
	}

	passwordHash, err := hashPassword(s.hasher, next)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return s.syncPartnerPassword(ctx, user, passwordHash, false)
}

// syncPartnerPassword copies a new password onto the partner record opened
// with the same email, so partner login follows changes and resets. With
// revoke set the partner's refresh token is dropped as well.
func (s *AuthService) syncPartnerPassword(ctx context.Context, user models.User, passwordHash string, revoke bool) error {
	if user.Role != models.UserRolePartner {
		return nil
	}
	err := s.partners.UpdatePasswordByEmail(ctx, user.Email, passwordHash)
	if errors.Is(err, repository.ErrPartnerNotFound) {
		return nil
	} else if err != nil {
		return fmt.Errorf("update partner password: %w", err)
	}
	if !revoke {
		return nil
	}

	partner, err := s.partners.FindByEmail(ctx, user.Email)
	if err != nil {
		return fmt.Errorf("find partner: %w", err)
	}
	if err := s.partners.SetRefreshTokenHash(ctx, partner.ID, nil); err != nil {
		s.log.Warn().Err(err).Str("partner_id", partner.ID).Msg("revoke partner refresh token after reset failed")
	}
	return nil
}

// ResolvePrincipal loads the live identity behind a verified access token so
// deleted accounts and partner status changes take effect immediately.
func (s *AuthService) ResolvePrincipal(ctx context.Context, id string, kind models.PrincipalKind) (models.Principal, error) {
	switch kind {
	case models.KindUser:
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			return models.Principal{}, mapNotFound(err)
		}
		return user.Principal(), nil
	case models.KindPartner:
		partner, err := s.partners.GetByID(ctx, id)
		if err != nil {
			return models.Principal{}, mapNotFound(err)
		}
		return partner.Principal(), nil
	}
	return models.Principal{}, ErrNotFound
}

func (s *AuthService) authenticateUser(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	if !s.hasher.VerifyPtr(password, user.PasswordHash) {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) userSession(ctx context.Context, user models.User) (Session, error) {
	session, err := s.issue(ctx, user.Principal())
	if err != nil {
		return Session{}, err
	}
	session.User = &user
	return session, nil
}

// issue signs a token pair and stores the refresh digest, replacing any
// earlier one.
func (s *AuthService) issue(ctx context.Context, principal models.Principal) (Session, error) {
	access, err := s.tokens.IssueAccess(principal.ID, principal.Email, principal.Role, principal.Kind)
	if err != nil {
		return Session{}, err
	}
	refresh, err := s.tokens.IssueRefresh(principal.ID, principal.Email, principal.Kind)
	if err != nil {
		return Session{}, err
	}

	digest := security.HashToken(refresh.Value)
	if err := s.storeRefresh(ctx, principal, &digest); err != nil {
		return Session{}, fmt.Errorf("store refresh token: %w", err)
	}

	return Session{
		Principal:    principal,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (s *AuthService) storeRefresh(ctx context.Context, principal models.Principal, digest *string) error {
	if principal.IsPartner() {
		return s.partners.SetRefreshTokenHash(ctx, principal.ID, digest)
	}
	return s.users.SetRefreshTokenHash(ctx, principal.ID, digest)
}

func (s *AuthService) lookupRefresh(ctx context.Context, id string, kind models.PrincipalKind) (models.Principal, *string, error) {
	switch kind {
	case models.KindUser:
		user, err := s.users.GetByID(ctx, id)
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.Principal{}, nil, ErrRefreshInvalid
		} else if err != nil {
			return models.Principal{}, nil, fmt.Errorf("load user: %w", err)
		}
		return user.Principal(), user.RefreshTokenHash, nil
	case models.KindPartner:
		partner, err := s.partners.GetByID(ctx, id)
		if errors.Is(err, repository.ErrPartnerNotFound) {
			return models.Principal{}, nil, ErrRefreshInvalid
		} else if err != nil {
			return models.Principal{}, nil, fmt.Errorf("load partner: %w", err)
		}
		return partner.Principal(), partner.RefreshTokenHash, nil
	}
	return models.Principal{}, nil, ErrRefreshInvalid
}

func (s *AuthService) ensureEmailFree(ctx context.Context, email string, partner bool) error {
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return ErrAccountConflict
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("find user: %w", err)
	}
	if !partner {
		return nil
	}
	if _, err := s.partners.FindByEmail(ctx, email); err == nil {
		return ErrAccountConflict
	} else if !errors.Is(err, repository.ErrPartnerNotFound) {
		return fmt.Errorf("find partner: %w", err)
	}
	return nil
}

func (s *AuthService) publish(ctx context.Context, msg notify.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, msg); err != nil {
		s.log.Warn().Err(err).Str("type", string(msg.Kind)).Str("to", msg.To).Msg("enqueue email failed")
	}
}

func createPartnerRecord(ctx context.Context, partners repository.PartnerStore, user models.User, status models.PartnerStatus) error {
	name := user.FullName()
	if name == "" {
		name = user.Email
	}
	partner := models.Partner{
		ID:           ids.New(),
		Email:        user.Email,
		Name:         name,
		PasswordHash: user.PasswordHash,
		Status:       status,
	}
	if err := partners.Create(ctx, partner); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return ErrAccountConflict
		}
		return fmt.Errorf("create partner: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, repository.ErrPartnerNotFound) {
		return ErrNotFound
	}
	return err
}
