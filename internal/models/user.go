package models

import "time"

type UserRole string

const (
	UserRoleUser    UserRole = "USER"
	UserRoleAdmin   UserRole = "ADMIN"
	UserRolePartner UserRole = "PARTNER"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleUser, UserRoleAdmin, UserRolePartner:
		return true
	}
	return false
}

type AuthProvider string

const (
	ProviderLocal  AuthProvider = "local"
	ProviderGoogle AuthProvider = "google"
)

type User struct {
	ID                string
	Email             string
	PasswordHash      *string
	FirstName         string
	LastName          string
	Country           *string
	Role              UserRole
	GoogleID          *string
	Provider          AuthProvider
	ProfilePicture    *string
	RefreshTokenHash  *string
	ResetToken        *string
	ResetTokenExpires *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (u User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Principal projects the user onto the request identity.
func (u User) Principal() Principal {
	return Principal{
		ID:    u.ID,
		Email: u.Email,
		Kind:  KindUser,
		Role:  u.Role,
	}
}
