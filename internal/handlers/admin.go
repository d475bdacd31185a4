package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"touris/api/internal/middleware"
	"touris/api/internal/models"
	"touris/api/internal/service"
)

type createUserRequest struct {
	Email     string          `json:"email" binding:"required,email,max=254"`
	Password  string          `json:"password" binding:"required,strongpassword"`
	FirstName string          `json:"firstName" binding:"max=100"`
	LastName  string          `json:"lastName" binding:"max=100"`
	Country   *string         `json:"country" binding:"omitempty,max=100"`
	Role      models.UserRole `json:"role" binding:"omitempty,oneof=USER ADMIN PARTNER"`
}

func (h HandlerSet) AdminCreateUser(c *gin.Context) {
	var req createUserRequest
	if !bind(c, &req) {
		return
	}

	user, err := h.accounts.CreateUser(c.Request.Context(), service.CreateUserInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Country:   req.Country,
		Role:      req.Role,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, "User created", newUserView(user))
}

type updateRoleRequest struct {
	Role models.UserRole `json:"role" binding:"required,oneof=USER ADMIN PARTNER"`
}

func (h HandlerSet) AdminUpdateRole(c *gin.Context) {
	var req updateRoleRequest
	if !bind(c, &req) {
		return
	}

	user, err := h.accounts.UpdateRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "Role updated", newUserView(user))
}

func (h HandlerSet) AdminListPartners(c *gin.Context) {
	status := models.PartnerStatus(strings.ToUpper(c.Query("status")))

	partners, err := h.accounts.ListPartners(c.Request.Context(), status)
	if err != nil {
		h.writeError(c, err)
		return
	}

	views := make([]partnerView, 0, len(partners))
	for _, partner := range partners {
		views = append(views, newPartnerView(partner))
	}
	respond(c, http.StatusOK, "", gin.H{"partners": views, "count": len(views)})
}

func (h HandlerSet) AdminGetPartner(c *gin.Context) {
	partner, err := h.accounts.GetPartner(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "", newPartnerView(partner))
}

type updatePartnerStatusRequest struct {
	Status models.PartnerStatus `json:"status" binding:"required,oneof=PENDING APPROVED REJECTED SUSPENDED"`
}

func (h HandlerSet) AdminUpdatePartnerStatus(c *gin.Context) {
	var req updatePartnerStatusRequest
	if !bind(c, &req) {
		return
	}

	partner, err := h.accounts.UpdatePartnerStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if admin, ok := middleware.CurrentPrincipal(c); ok {
		h.log.Info().
			Str("partner_id", partner.ID).
			Str("status", string(partner.Status)).
			Str("admin_id", admin.ID).
			Msg("partner status changed by admin")
	}
	respond(c, http.StatusOK, "Partner status updated", newPartnerView(partner))
}
