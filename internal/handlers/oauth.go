package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type googleLoginRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

func (h HandlerSet) GoogleLogin(c *gin.Context) {
	var req googleLoginRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.federation.GoogleLogin(c.Request.Context(), req.IDToken)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setAuthCookies(c, result.Session)
	view := newSessionView(result.Session)
	view.IsNewUser = &result.IsNewUser
	respond(c, http.StatusOK, "Google login successful", view)
}

func (h HandlerSet) UnlinkGoogle(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	user, err := h.federation.UnlinkGoogle(c.Request.Context(), principal)
	if err != nil {
		h.writeError(c, err)
		return
	}

	respond(c, http.StatusOK, "Google account unlinked", newUserView(user))
}
