package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	probeOK       = "ok"
	probeError    = "error"
	probeDisabled = "disabled"
)

type healthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	Cache       string `json:"cache"`
	Environment string `json:"environment"`
}

// Health reports 503 when a configured backend fails its ping. Backends that
// were never wired report "disabled".
func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:      probeOK,
		Database:    probeDisabled,
		Cache:       probeDisabled,
		Environment: h.cfg.Environment,
	}

	if h.db != nil {
		resp.Database = probeOK
		if err := h.db.Ping(ctx); err != nil {
			resp.Database = probeError
			h.log.Error().Err(err).Msg("database ping failed")
		}
	}

	if h.cache != nil {
		resp.Cache = probeOK
		if err := h.cache.Ping(ctx).Err(); err != nil {
			resp.Cache = probeError
			h.log.Error().Err(err).Msg("redis ping failed")
		}
	}

	status := http.StatusOK
	if resp.Database == probeError || resp.Cache == probeError {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
