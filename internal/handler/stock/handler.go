package stock

import (
	"strconv"

	"github.com/gin-gonic/gin"

	inventoryService "github.com/jwalitptl/inventory-api/internal/service/inventory"
	apperrors "github.com/jwalitptl/inventory-api/pkg/errors"
	"github.com/jwalitptl/inventory-api/pkg/httputil"
)

type Handler struct {
	service *inventoryService.Service
}

func NewHandler(service *inventoryService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	stock := r.Group("/stock")
	{
		stock.GET("", h.ListStock)
		stock.GET("/:sku", h.GetStock)
		stock.POST("/:sku/restock", h.Restock)
		stock.POST("/:sku/sell", h.Sell)
		stock.POST("/:sku/adjust", h.Adjust)
		stock.POST("/:sku/return", h.Return)
		stock.PUT("/:sku/threshold", h.UpdateThreshold)
	}
}

type quantityRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

type adjustRequest struct {
	Quantity int `json:"quantity" binding:"gte=0"`
}

type thresholdRequest struct {
	Threshold int `json:"threshold" binding:"gte=0"`
}

func (h *Handler) GetStock(c *gin.Context) {
	stock, err := h.service.GetBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stock)
}

func (h *Handler) ListStock(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.service.List(c.Request.Context(), limit, offset)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, items)
}

func (h *Handler) Restock(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	stock, err := h.service.Restock(c.Request.Context(), c.Param("sku"), req.Quantity)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stock)
}

func (h *Handler) Sell(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	stock, err := h.service.Sell(c.Request.Context(), c.Param("sku"), req.Quantity)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stock)
}

func (h *Handler) Adjust(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	stock, err := h.service.Adjust(c.Request.Context(), c.Param("sku"), req.Quantity)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stock)
}

func (h *Handler) Return(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	stock, err := h.service.Return(c.Request.Context(), c.Param("sku"), req.Quantity)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stock)
}

func (h *Handler) UpdateThreshold(c *gin.Context) {
	var req thresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	if err := h.service.UpdateThreshold(c.Request.Context(), c.Param("sku"), req.Threshold); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"sku": c.Param("sku"), "threshold": req.Threshold})
}
