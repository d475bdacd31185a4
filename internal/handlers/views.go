package handlers

import (
	"time"

	"touris/api/internal/models"
	"touris/api/internal/service"
)

type userView struct {
	ID             string              `json:"id"`
	Email          string              `json:"email"`
	FirstName      string              `json:"firstName"`
	LastName       string              `json:"lastName"`
	Country        *string             `json:"country"`
	Role           models.UserRole     `json:"role"`
	Provider       models.AuthProvider `json:"provider"`
	ProfilePicture *string             `json:"profilePicture"`
	HasPassword    bool                `json:"hasPassword"`
	GoogleLinked   bool                `json:"googleLinked"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

func newUserView(user models.User) userView {
	return userView{
		ID:             user.ID,
		Email:          user.Email,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		Country:        user.Country,
		Role:           user.Role,
		Provider:       user.Provider,
		ProfilePicture: user.ProfilePicture,
		HasPassword:    user.HasPassword(),
		GoogleLinked:   user.GoogleID != nil,
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
	}
}

type partnerView struct {
	ID          string               `json:"id"`
	Email       string               `json:"email"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Status      models.PartnerStatus `json:"status"`
	Role        models.UserRole      `json:"role"`
	CreatedAt   time.Time            `json:"createdAt"`
}

func newPartnerView(partner models.Partner) partnerView {
	return partnerView{
		ID:          partner.ID,
		Email:       partner.Email,
		Name:        partner.Name,
		Description: partner.Description,
		Status:      partner.Status,
		Role:        models.UserRolePartner,
		CreatedAt:   partner.CreatedAt,
	}
}

type sessionView struct {
	User         *userView    `json:"user,omitempty"`
	Partner      *partnerView `json:"partner,omitempty"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time    `json:"expiresAt"`
	IsNewUser    *bool        `json:"isNewUser,omitempty"`
}

func newSessionView(session service.Session) sessionView {
	view := sessionView{
		AccessToken:  session.AccessToken.Value,
		RefreshToken: session.RefreshToken.Value,
		ExpiresAt:    session.AccessToken.ExpiresAt,
	}
	if session.User != nil {
		u := newUserView(*session.User)
		view.User = &u
	}
	if session.Partner != nil {
		p := newPartnerView(*session.Partner)
		view.Partner = &p
	}
	return view
}
