package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"touris/api/internal/config"
	"touris/api/internal/ids"
	"touris/api/internal/media/sniffer"
	"touris/api/internal/models"
	"touris/api/internal/repository"
	"touris/api/internal/security"
)

// Uploader stores an image and returns the URL it is served from.
type Uploader interface {
	Upload(ctx context.Context, ownerID, name string, body io.Reader, size int64, contentType string) (string, error)
}

// AccountService covers user self-service and the admin side of user and
// partner management.
type AccountService struct {
	users       repository.UserStore
	partners    repository.PartnerStore
	uploader    Uploader
	adminHasher security.Hasher
	cfg         *config.AppConfig
	log         zerolog.Logger
	now         func() time.Time
}

func NewAccountService(
	users repository.UserStore,
	partners repository.PartnerStore,
	uploader Uploader,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AccountService {
	return &AccountService{
		users:       users,
		partners:    partners,
		uploader:    uploader,
		adminHasher: security.NewHasher(cfg.Security.AdminBcryptCost),
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

func (s *AccountService) GetUser(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.User{}, mapNotFound(err)
	}
	return user, nil
}

// ListUsers returns every user, or only those holding role when it is set.
func (s *AccountService) ListUsers(ctx context.Context, role models.UserRole) ([]models.User, error) {
	if role != "" && !role.Valid() {
		return nil, validationError("unknown role %q", role)
	}
	users, err := s.users.List(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateUserInput leaves nil fields untouched.
type UpdateUserInput struct {
	FirstName *string
	LastName  *string
	Country   *string
}

func (s *AccountService) UpdateUser(ctx context.Context, id string, input UpdateUserInput) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.User{}, mapNotFound(err)
	}

	if input.FirstName != nil {
		user.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		user.LastName = strings.TrimSpace(*input.LastName)
	}
	if input.Country != nil {
		user.Country = optional(strings.TrimSpace(*input.Country))
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return models.User{}, mapNotFound(err)
	}
	return user, nil
}

func (s *AccountService) DeleteUser(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return mapNotFound(err)
	}
	s.log.Info().Str("user_id", id).Msg("user deleted")
	return nil
}

type CreateUserInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Country   *string
	Role      models.UserRole
}

// CreateUser is the admin path. It hashes with the admin cost, and a PARTNER
// created here is approved straight away.
func (s *AccountService) CreateUser(ctx context.Context, input CreateUserInput) (models.User, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return models.User{}, validationError("email and password are required")
	}
	role := input.Role
	if role == "" {
		role = models.UserRoleUser
	}
	if !role.Valid() {
		return models.User{}, validationError("unknown role %q", role)
	}

	passwordHash, err := hashPassword(s.adminHasher, input.Password)
	if err != nil {
		return models.User{}, err
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
			return models.User{}, ErrAccountConflict
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}

	if role == models.UserRolePartner {
		if err := createPartnerRecord(ctx, s.partners, user, models.PartnerStatusApproved); err != nil {
			if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
				s.log.Error().Err(delErr).Str("user_id", user.ID).Msg("rollback user after partner create failed")
			}
			return models.User{}, err
		}
	}

	s.log.Info().Str("user_id", user.ID).Str("role", string(role)).Msg("user created by admin")
	return user, nil
}

func (s *AccountService) UpdateRole(ctx context.Context, id string, role models.UserRole) (models.User, error) {
	if !role.Valid() {
		return models.User{}, validationError("unknown role %q", role)
	}
	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		return models.User{}, mapNotFound(err)
	}
	return s.GetUser(ctx, id)
}

func (s *AccountService) ListPartners(ctx context.Context, status models.PartnerStatus) ([]models.Partner, error) {
	if status != "" && !status.Valid() {
		return nil, validationError("unknown partner status %q", status)
	}
	partners, err := s.partners.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}
	return partners, nil
}

func (s *AccountService) GetPartner(ctx context.Context, id string) (models.Partner, error) {
	partner, err := s.partners.GetByID(ctx, id)
	if err != nil {
		return models.Partner{}, mapNotFound(err)
	}
	return partner, nil
}

// UpdatePartnerStatus moves a partner through the approval states. Leaving
// APPROVED also revokes the partner's refresh token.
func (s *AccountService) UpdatePartnerStatus(ctx context.Context, id string, status models.PartnerStatus) (models.Partner, error) {
	if !status.Valid() {
		return models.Partner{}, validationError("unknown partner status %q", status)
	}
	if err := s.partners.UpdateStatus(ctx, id, status); err != nil {
		return models.Partner{}, mapNotFound(err)
	}
	if status != models.PartnerStatusApproved {
		if err := s.partners.SetRefreshTokenHash(ctx, id, nil); err != nil {
			s.log.Warn().Err(err).Str("partner_id", id).Msg("revoke partner refresh token failed")
		}
	}

	s.log.Info().Str("partner_id", id).Str("status", string(status)).Msg("partner status updated")
	return s.GetPartner(ctx, id)
}

type PartnerAccount struct {
	Partner     models.Partner
	MemberSince time.Time
	DaysActive  int
}

func (s *AccountService) PartnerAccount(ctx context.Context, id string) (PartnerAccount, error) {
	partner, err := s.GetPartner(ctx, id)
	if err != nil {
		return PartnerAccount{}, err
	}
	return PartnerAccount{
		Partner:     partner,
		MemberSince: partner.CreatedAt,
		DaysActive:  int(s.now().Sub(partner.CreatedAt).Hours() / 24),
	}, nil
}

// UploadAvatar accepts a JPEG, PNG or WebP up to the configured size and
// makes it the user's profile picture.
func (s *AccountService) UploadAvatar(ctx context.Context, userID string, body io.Reader, size int64, declared string) (models.User, error) {
	if s.uploader == nil {
		return models.User{}, errors.New("avatar storage is not configured")
	}
	if size <= 0 {
		return models.User{}, validationError("empty file")
	}
	if limit := s.cfg.Storage.MaxUploadSize; limit > 0 && size > limit {
		return models.User{}, validationError("file exceeds %d bytes", limit)
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return models.User{}, mapNotFound(err)
	}

	result, head, err := sniffer.Detect(body)
	if err != nil {
		if errors.Is(err, sniffer.ErrUnknownType) {
			return models.User{}, validationError("only jpeg, png and webp images are accepted")
		}
		return models.User{}, fmt.Errorf("read upload: %w", err)
	}
	if declared != "" && declared != "application/octet-stream" && declared != result.MIME {
		return models.User{}, validationError("content type mismatch: declared %s, actual %s", declared, result.MIME)
	}

	name := ids.New() + "." + result.Extension()
	url, err := s.uploader.Upload(ctx, userID, name, io.MultiReader(bytes.NewReader(head), body), size, result.MIME)
	if err != nil {
		return models.User{}, fmt.Errorf("upload avatar: %w", err)
	}

	if err := s.users.SetProfilePicture(ctx, userID, url); err != nil {
		return models.User{}, mapNotFound(err)
	}
	return s.GetUser(ctx, userID)
}
