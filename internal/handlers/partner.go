package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// PartnerProfile is reachable in any approval state so a pending partner can
// see where their application stands.
func (h HandlerSet) PartnerProfile(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	partner, err := h.accounts.GetPartner(c.Request.Context(), principal.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "", newPartnerView(partner))
}

type partnerAccountView struct {
	Partner     partnerView `json:"partner"`
	MemberSince time.Time   `json:"memberSince"`
	DaysActive  int         `json:"daysActive"`
}

func (h HandlerSet) PartnerAccount(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	account, err := h.accounts.PartnerAccount(c.Request.Context(), principal.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "", partnerAccountView{
		Partner:     newPartnerView(account.Partner),
		MemberSince: account.MemberSince,
		DaysActive:  account.DaysActive,
	})
}
