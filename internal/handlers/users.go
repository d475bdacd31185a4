package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"touris/api/internal/media/sniffer"
	"touris/api/internal/middleware"
	"touris/api/internal/models"
	"touris/api/internal/service"
)

// multipartOverhead is the slack allowed on top of the file size for the
// multipart framing and other form fields.
const multipartOverhead = 64 << 10

// ListUsers serves both the full listing and the by-role one.
func (h HandlerSet) ListUsers(c *gin.Context) {
	role := models.UserRole(strings.ToUpper(c.Param("role")))

	users, err := h.accounts.ListUsers(c.Request.Context(), role)
	if err != nil {
		h.writeError(c, err)
		return
	}

	views := make([]userView, 0, len(users))
	for _, user := range users {
		views = append(views, newUserView(user))
	}
	respond(c, http.StatusOK, "", gin.H{"users": views, "count": len(views)})
}

func (h HandlerSet) GetUser(c *gin.Context) {
	user, err := h.accounts.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "", newUserView(user))
}

type updateUserRequest struct {
	FirstName *string `json:"firstName" binding:"omitempty,max=100"`
	LastName  *string `json:"lastName" binding:"omitempty,max=100"`
	Country   *string `json:"country" binding:"omitempty,max=100"`
}

func (h HandlerSet) UpdateUser(c *gin.Context) {
	var req updateUserRequest
	if !bind(c, &req) {
		return
	}

	user, err := h.accounts.UpdateUser(c.Request.Context(), c.Param("id"), service.UpdateUserInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Country:   req.Country,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "Profile updated", newUserView(user))
}

func (h HandlerSet) DeleteUser(c *gin.Context) {
	id := c.Param("id")
	if err := h.accounts.DeleteUser(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}

	if principal, ok := middleware.CurrentPrincipal(c); ok && principal.ID == id {
		h.clearAuthCookies(c)
	}
	respond(c, http.StatusOK, "Account deleted", nil)
}

func (h HandlerSet) UploadAvatar(c *gin.Context) {
	if limit := h.cfg.Storage.MaxUploadSize; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		fail(c, http.StatusBadRequest, codeInvalidUpload, "An image file is required in the \"image\" field")
		return
	}
	defer file.Close()

	user, err := h.accounts.UploadAvatar(
		c.Request.Context(),
		c.Param("id"),
		file,
		header.Size,
		sniffer.MimeTypeFromHTTP(http.Header(header.Header)),
	)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "Profile picture updated", newUserView(user))
}
