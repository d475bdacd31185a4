package repository

import (
	"context"
	"errors"
	"time"

	"touris/api/internal/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrPartnerNotFound = errors.New("partner not found")
	ErrEmailExists     = errors.New("email already registered")
	ErrGoogleIDExists  = errors.New("google account already linked")
)

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	GetByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	// List returns users newest first; an empty role lists all.
	List(ctx context.Context, role models.UserRole) ([]models.User, error)
	// FindByGoogleIDOrEmail returns the user bound to googleID, falling back
	// to the user owning email.
	FindByGoogleIDOrEmail(ctx context.Context, googleID, email string) (models.User, error)
	UpdateProfile(ctx context.Context, user models.User) error
	UpdateRole(ctx context.Context, id string, role models.UserRole) error
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	SetGoogleLink(ctx context.Context, id string, googleID *string, provider models.AuthProvider, picture *string) error
	SetProfilePicture(ctx context.Context, id string, url string) error
	SetRefreshTokenHash(ctx context.Context, id string, hash *string) error
	SetResetToken(ctx context.Context, id string, tokenHash string, expires time.Time) error
	// ConsumeResetToken swaps the password and clears the reset token in one
	// statement, only while the token is unexpired at now.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (string, error)
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
	Delete(ctx context.Context, id string) error
}

type PartnerStore interface {
	Create(ctx context.Context, partner models.Partner) error
	GetByID(ctx context.Context, id string) (models.Partner, error)
	FindByEmail(ctx context.Context, email string) (models.Partner, error)
	List(ctx context.Context, status models.PartnerStatus) ([]models.Partner, error)
	UpdateStatus(ctx context.Context, id string, status models.PartnerStatus) error
	// UpdatePasswordByEmail keeps a partner login in step with the user
	// account that registered it.
	UpdatePasswordByEmail(ctx context.Context, email string, passwordHash string) error
	SetRefreshTokenHash(ctx context.Context, id string, hash *string) error
}
