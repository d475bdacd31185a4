package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"touris/api/internal/middleware"
	"touris/api/internal/models"
	"touris/api/internal/service"
)

const (
	codeValidation         = "VALIDATION_ERROR"
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codePartnerNotApproved = "PARTNER_NOT_APPROVED"
	codeRefreshInvalid     = "INVALID_REFRESH_TOKEN"
	codeRefreshExpired     = "REFRESH_TOKEN_EXPIRED"
	codeResetTokenInvalid  = "INVALID_RESET_TOKEN"
	codeAccountExists      = "ACCOUNT_EXISTS"
	codeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	codeGoogleTokenInvalid = "INVALID_GOOGLE_TOKEN"
	codeNoLinkedAccount    = "NO_LINKED_ACCOUNT"
	codePasswordRequired   = "PASSWORD_REQUIRED"
	codeInvalidCurrentPass = "INVALID_CURRENT_PASSWORD"
	codeNotFound           = "NOT_FOUND"
	codeInvalidUpload      = "INVALID_UPLOAD"
)

func respond(c *gin.Context, status int, message string, data any) {
	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Messages are fixed per error so internals never reach the client.
var errorMappings = []errorMapping{
	{service.ErrInvalidCredentials, http.StatusUnauthorized, codeInvalidCredentials, "Invalid email or password"},
	{service.ErrRefreshExpired, http.StatusUnauthorized, codeRefreshExpired, "Refresh token expired, please log in again"},
	{service.ErrRefreshInvalid, http.StatusUnauthorized, codeRefreshInvalid, "Invalid refresh token"},
	{service.ErrFederatedTokenInvalid, http.StatusUnauthorized, codeGoogleTokenInvalid, "Invalid Google token"},
	{service.ErrForbidden, http.StatusForbidden, middleware.CodeForbidden, "Access denied"},
	{service.ErrResetTokenInvalid, http.StatusBadRequest, codeResetTokenInvalid, "Invalid or expired reset token"},
	{service.ErrAccountConflict, http.StatusBadRequest, codeAccountExists, "An account with this email already exists"},
	{service.ErrEmailNotVerified, http.StatusBadRequest, codeEmailNotVerified, "Google email is not verified"},
	{service.ErrNoLinkedAccount, http.StatusBadRequest, codeNoLinkedAccount, "No Google account is linked"},
	{service.ErrPasswordRequired, http.StatusBadRequest, codePasswordRequired, "Set a password before removing your only login method"},
	{service.ErrInvalidCurrentPassword, http.StatusBadRequest, codeInvalidCurrentPass, "Current password is incorrect"},
	{service.ErrNotFound, http.StatusNotFound, codeNotFound, "Resource not found"},
}

func (h HandlerSet) writeError(c *gin.Context, err error) {
	var pending *service.PendingApprovalError
	if errors.As(err, &pending) {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   partnerStatusMessage(pending.Status),
			"code":    codePartnerNotApproved,
			"status":  pending.Status,
		})
		return
	}

	if errors.Is(err, service.ErrValidation) {
		fail(c, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			fail(c, mapping.status, mapping.code, mapping.message)
			return
		}
	}

	h.log.Error().
		Err(err).
		Str("path", c.FullPath()).
		Str("request_id", c.Writer.Header().Get("X-Request-Id")).
		Msg("request failed")
	fail(c, http.StatusInternalServerError, middleware.CodeInternal, "Internal server error")
}

func partnerStatusMessage(status models.PartnerStatus) string {
	switch status {
	case models.PartnerStatusPending:
		return "Your partner account is pending approval"
	case models.PartnerStatusRejected:
		return "Your partner application was rejected"
	case models.PartnerStatusSuspended:
		return "Your partner account is suspended"
	}
	return "Your partner account is not active"
}

func currentPrincipal(c *gin.Context) (models.Principal, bool) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		fail(c, http.StatusUnauthorized, middleware.CodeUnauthenticated, "Authentication required")
	}
	return principal, ok
}
