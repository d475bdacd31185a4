package models

import "time"

type PartnerStatus string

const (
	PartnerStatusPending   PartnerStatus = "PENDING"
	PartnerStatusApproved  PartnerStatus = "APPROVED"
	PartnerStatusRejected  PartnerStatus = "REJECTED"
	PartnerStatusSuspended PartnerStatus = "SUSPENDED"
)

func (s PartnerStatus) Valid() bool {
	switch s {
	case PartnerStatusPending, PartnerStatusApproved, PartnerStatusRejected, PartnerStatusSuspended:
		return true
	}
	return false
}

type Partner struct {
	ID               string
	Email            string
	Name             string
	Description      string
	PasswordHash     *string
	Status           PartnerStatus
	RefreshTokenHash *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Principal projects the partner onto the request identity. Partners have no
// role column; the role is always PARTNER.
func (p Partner) Principal() Principal {
	return Principal{
		ID:     p.ID,
		Email:  p.Email,
		Kind:   KindPartner,
		Role:   UserRolePartner,
		Status: p.Status,
	}
}
