package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"touris/api/internal/middleware"
	"touris/api/internal/models"
	"touris/api/internal/service"
)

const resetRequestedMessage = "If an account with that email exists, a password reset link has been sent"

type registerRequest struct {
	Email     string          `json:"email" binding:"required,email,max=254"`
	Password  string          `json:"password" binding:"required,strongpassword"`
	FirstName string          `json:"firstName" binding:"max=100"`
	LastName  string          `json:"lastName" binding:"max=100"`
	Country   *string         `json:"country" binding:"omitempty,max=100"`
	Role      models.UserRole `json:"role"`
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if !bind(c, &req) {
		return
	}

	session, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Country:   req.Country,
		Role:      models.UserRole(strings.ToUpper(string(req.Role))),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setAuthCookies(c, session)
	respond(c, http.StatusCreated, "Registration successful", newSessionView(session))
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginFunc func(c *gin.Context, email, password string) (service.Session, error)

func (h HandlerSet) Login(c *gin.Context) {
	h.login(c, func(c *gin.Context, email, password string) (service.Session, error) {
		return h.auth.Login(c.Request.Context(), email, password)
	})
}

func (h HandlerSet) LoginAdmin(c *gin.Context) {
	h.login(c, func(c *gin.Context, email, password string) (service.Session, error) {
		return h.auth.LoginAdmin(c.Request.Context(), email, password)
	})
}

func (h HandlerSet) LoginPartner(c *gin.Context) {
	h.login(c, func(c *gin.Context, email, password string) (service.Session, error) {
		return h.auth.LoginPartner(c.Request.Context(), email, password)
	})
}

func (h HandlerSet) login(c *gin.Context, fn loginFunc) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}

	session, err := fn(c, req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setAuthCookies(c, session)
	respond(c, http.StatusOK, "Login successful", newSessionView(session))
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh reads the refresh token from its cookie and falls back to the body
// for clients that cannot hold cookies. Only the access token is reissued.
func (h HandlerSet) Refresh(c *gin.Context) {
	raw, _ := c.Cookie(middleware.RefreshTokenCookie)
	if raw == "" {
		var req refreshRequest
		if c.Request.ContentLength != 0 {
			_ = c.ShouldBindJSON(&req)
		}
		raw = req.RefreshToken
	}
	if raw == "" {
		fail(c, http.StatusUnauthorized, codeRefreshInvalid, "Refresh token required")
		return
	}

	session, err := h.auth.Refresh(c.Request.Context(), raw)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setAccessCookie(c, session.AccessToken)
	respond(c, http.StatusOK, "Token refreshed", gin.H{
		"accessToken": session.AccessToken.Value,
		"expiresAt":   session.AccessToken.ExpiresAt,
	})
}

func (h HandlerSet) Logout(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	if err := h.auth.Logout(c.Request.Context(), principal); err != nil {
		h.writeError(c, err)
		return
	}

	h.clearAuthCookies(c)
	respond(c, http.StatusOK, "Logged out", nil)
}

type profileView struct {
	User    *userView    `json:"user,omitempty"`
	Partner *partnerView `json:"partner,omitempty"`
}

func (h HandlerSet) Me(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	profile, err := h.auth.Me(c.Request.Context(), principal)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var view profileView
	if profile.User != nil {
		u := newUserView(*profile.User)
		view.User = &u
	}
	if profile.Partner != nil {
		p := newPartnerView(*profile.Partner)
		view.Partner = &p
	}
	respond(c, http.StatusOK, "", view)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" binding:"required,strongpassword"`
}

func (h HandlerSet) ChangePassword(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	var req changePasswordRequest
	if !bind(c, &req) {
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), principal, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(c, err)
		return
	}

	respond(c, http.StatusOK, "Password updated", nil)
}

type requestResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetDevInfo struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// RequestPasswordReset answers every well-formed request the same way. Outside
// production the raw token is echoed so the flow can be driven without mail.
func (h HandlerSet) RequestPasswordReset(c *gin.Context) {
	var req requestResetRequest
	if !bind(c, &req) {
		return
	}

	ticket, err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		h.log.Error().Err(err).Msg("password reset request failed")
	}

	if h.cfg.IsProduction() || ticket.Token == "" {
		respond(c, http.StatusOK, resetRequestedMessage, nil)
		return
	}
	respond(c, http.StatusOK, resetRequestedMessage, gin.H{
		"devInfo": resetDevInfo{Token: ticket.Token, Expires: ticket.ExpiresAt},
	})
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,strongpassword"`
}

func (h HandlerSet) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bind(c, &req) {
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		h.writeError(c, err)
		return
	}

	respond(c, http.StatusOK, "Password has been reset", nil)
}
