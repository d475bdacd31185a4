package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"touris/api/internal/models"
	"touris/api/internal/security"
	"touris/api/internal/service"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
	// LegacyTokenCookie was used by older clients and is only ever cleared.
	LegacyTokenCookie = "authToken"

	principalKey   = "current_principal"
	accessTokenKey = "access_token"
)

type AccessTokenParser interface {
	ParseAccess(raw string) (*security.AccessClaims, error)
}

type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, id string, kind models.PrincipalKind) (models.Principal, error)
}

// Authenticate verifies the access token and attaches the live principal.
// The cookie wins over the Authorization header when both are present.
func Authenticate(tokens AccessTokenParser, resolver PrincipalResolver, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractAccessToken(c)
		if raw == "" {
			abort(c, http.StatusUnauthorized, CodeUnauthenticated, "Authentication required")
			return
		}

		claims, err := tokens.ParseAccess(raw)
		if err != nil {
			if errors.Is(err, security.ErrTokenExpired) {
				abort(c, http.StatusUnauthorized, CodeTokenExpired, "Access token expired")
				return
			}
			abort(c, http.StatusUnauthorized, CodeInvalidToken, "Invalid access token")
			return
		}

		principal, err := resolver.ResolvePrincipal(c.Request.Context(), claims.UserID, claims.Kind)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				abort(c, http.StatusUnauthorized, CodeUnauthenticated, "Account no longer exists")
				return
			}
			log.Error().Err(err).Str("principal_id", claims.UserID).Msg("resolve principal failed")
			abort(c, http.StatusInternalServerError, CodeInternal, "Internal server error")
			return
		}

		c.Set(accessTokenKey, raw)
		c.Set(principalKey, principal)

		c.Next()
	}
}

// CurrentPrincipal returns the principal set by Authenticate.
func CurrentPrincipal(c *gin.Context) (models.Principal, bool) {
	value, exists := c.Get(principalKey)
	if !exists {
		return models.Principal{}, false
	}
	principal, ok := value.(models.Principal)
	return principal, ok
}

func extractAccessToken(c *gin.Context) string {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie
	}

	header := c.GetHeader("Authorization")
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return ""
}
