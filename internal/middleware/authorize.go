package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"touris/api/internal/models"
)

func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := CurrentPrincipal(c)
		if !ok {
			abort(c, http.StatusUnauthorized, CodeUnauthenticated, "Authentication required")
			return
		}
		if !principal.HasRole(roles...) {
			abort(c, http.StatusForbidden, CodeForbidden, "Insufficient permissions")
			return
		}
		c.Next()
	}
}

// RequireOwnershipOrRole lets a principal act on the resource named by the
// route parameter when it is their own id, and lets the given roles act on
// any.
func RequireOwnershipOrRole(param string, roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := CurrentPrincipal(c)
		if !ok {
			abort(c, http.StatusUnauthorized, CodeUnauthenticated, "Authentication required")
			return
		}
		if c.Param(param) == principal.ID || principal.HasRole(roles...) {
			c.Next()
			return
		}
		abort(c, http.StatusForbidden, CodeForbidden, "You can only access your own account")
	}
}

// RequirePartner admits partner principals in any approval state.
func RequirePartner() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := CurrentPrincipal(c)
		if !ok {
			abort(c, http.StatusUnauthorized, CodeUnauthenticated, "Authentication required")
			return
		}
		if !principal.IsPartner() {
			abort(c, http.StatusForbidden, CodeForbidden, "Partner account required")
			return
		}
		c.Next()
	}
}

// RequireApprovedPartner echoes the partner's status on denial so clients can
// explain why.
func RequireApprovedPartner() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := CurrentPrincipal(c)
		if !ok {
			abort(c, http.StatusUnauthorized, CodeUnauthenticated, "Authentication required")
			return
		}
		if !principal.IsPartner() {
			abort(c, http.StatusForbidden, CodeForbidden, "Partner account required")
			return
		}
		if principal.Status != models.PartnerStatusApproved {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "Partner account is not approved",
				"code":    CodeForbidden,
				"status":  principal.Status,
			})
			return
		}
		c.Next()
	}
}
