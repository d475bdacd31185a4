package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"touris/api/internal/middleware"
	"touris/api/internal/security"
	"touris/api/internal/service"
)

func (h HandlerSet) setAuthCookies(c *gin.Context, session service.Session) {
	h.setCookie(c, middleware.AccessTokenCookie, session.AccessToken.Value, h.tokens.AccessTTL())
	if session.RefreshToken.Value != "" {
		h.setCookie(c, middleware.RefreshTokenCookie, session.RefreshToken.Value, h.tokens.RefreshTTL())
	}
}

func (h HandlerSet) setAccessCookie(c *gin.Context, token security.Token) {
	h.setCookie(c, middleware.AccessTokenCookie, token.Value, h.tokens.AccessTTL())
}

func (h HandlerSet) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{
		middleware.AccessTokenCookie,
		middleware.RefreshTokenCookie,
		middleware.LegacyTokenCookie,
	} {
		h.setCookie(c, name, "", -1)
	}
}

// setCookie issues an httpOnly, SameSite=Strict cookie on /, marked Secure in
// production. A negative ttl deletes the cookie.
func (h HandlerSet) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	maxAge := int(ttl / time.Second)
	if ttl < 0 {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, value, maxAge, "/", "", h.cfg.IsProduction(), true)
}
