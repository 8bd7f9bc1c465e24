package outboxadmin

import (
	"strconv"

	"github.com/gin-gonic/gin"

	outboxadminService "github.com/jwalitptl/inventory-api/internal/service/outboxadmin"
	apperrors "github.com/jwalitptl/inventory-api/pkg/errors"
	"github.com/jwalitptl/inventory-api/pkg/httputil"
)

const (
	defaultReplayLimit      = 100
	defaultReconcileLimit   = 500
	defaultReconcileSeconds = 120
)

type Handler struct {
	service *outboxadminService.Service
}

func NewHandler(service *outboxadminService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/admin/outbox")
	{
		admin.POST("/replay", h.ReplayDead)
		admin.POST("/reconcile", h.ReconcileStaleInProgress)
	}
}

// ReplayDead moves up to limit DEAD events back to PENDING.
func (h *Handler) ReplayDead(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultReplayLimit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	result, err := h.service.ReplayDead(c.Request.Context(), limit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, result)
}

// ReconcileStaleInProgress returns events stuck IN_PROGRESS longer than
// olderThanSeconds back to PENDING.
func (h *Handler) ReconcileStaleInProgress(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultReconcileLimit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	seconds, err := queryInt(c, "olderThanSeconds", defaultReconcileSeconds)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	result, err := h.service.ReconcileStaleInProgress(c.Request.Context(), seconds, limit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, result)
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.BadRequest("invalid "+name, err)
	}
	return v, nil
}
