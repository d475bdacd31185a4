package service

import (
	"errors"
	"fmt"

	"touris/api/internal/models"
	"touris/api/internal/security"
)

var (
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrForbidden              = errors.New("forbidden")
	ErrRefreshInvalid         = errors.New("invalid refresh token")
	ErrRefreshExpired         = errors.New("refresh token expired")
	ErrResetTokenInvalid      = errors.New("invalid or expired reset token")
	ErrAccountConflict        = errors.New("an account with this email already exists")
	ErrEmailNotVerified       = errors.New("google email is not verified")
	ErrFederatedTokenInvalid  = errors.New("invalid google token")
	ErrNoLinkedAccount        = errors.New("no google account linked")
	ErrPasswordRequired       = errors.New("set a password before removing the last login method")
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
	ErrNotFound               = errors.New("not found")
	ErrValidation             = errors.New("validation failed")
)

// PendingApprovalError is returned when a partner proves their identity but
// the account is not APPROVED yet. It matches ErrForbidden.
type PendingApprovalError struct {
	Status models.PartnerStatus
}

func (e *PendingApprovalError) Error() string {
	return fmt.Sprintf("partner account is %s", e.Status)
}

func (e *PendingApprovalError) Is(target error) bool {
	return target == ErrForbidden
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// hashPassword reports an over-long password as a validation failure.
func hashPassword(hasher security.Hasher, password string) (string, error) {
	hash, err := hasher.Hash(password)
	if errors.Is(err, security.ErrPasswordTooLong) {
		return "", validationError("password must be at most %d bytes", security.MaxPasswordBytes)
	}
	return hash, err
}
