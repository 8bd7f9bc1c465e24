package report

import (
	"strconv"

	"github.com/gin-gonic/gin"

	reportService "github.com/jwalitptl/inventory-api/internal/service/report"
	"github.com/jwalitptl/inventory-api/pkg/httputil"
)

type Handler struct {
	service *reportService.Service
}

func NewHandler(service *reportService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	reports := r.Group("/reports")
	{
		reports.GET("/summary", h.GetSummary)
		reports.POST("/summary/rebuild", h.RebuildSummary)
		reports.DELETE("/summary", h.InvalidateSummary)
		reports.GET("/low-stock", h.ListLowStock)
		reports.GET("/out-of-stock", h.ListOutOfStock)
		reports.GET("/history", h.ListHistory)
	}
}

func (h *Handler) GetSummary(c *gin.Context) {
	summary, err := h.service.CurrentSummary(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, summary)
}

// RebuildSummary forces a projection recompute from the stock table.
// Operators call this after threshold changes or suspected divergence.
func (h *Handler) RebuildSummary(c *gin.Context) {
	summary, err := h.service.Rebuild(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, summary)
}

// InvalidateSummary drops the stored summary row; the next read rebuilds
// it from the stock table.
func (h *Handler) InvalidateSummary(c *gin.Context) {
	if err := h.service.Invalidate(c.Request.Context()); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"invalidated": true})
}

func (h *Handler) ListLowStock(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	items, err := h.service.LowStock(c.Request.Context(), limit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, items)
}

func (h *Handler) ListOutOfStock(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	items, err := h.service.OutOfStock(c.Request.Context(), limit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, items)
}

func (h *Handler) ListHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := h.service.RecentHistory(c.Request.Context(), limit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, entries)
}
