package sales

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	sales := r.Group("/sales")
	{
		sales.POST("", h.CreateSale)
		sales.GET("", h.ListSales)
		sales.GET("/:id", h.GetSale)
	}
}

func (h *Handler) CreateSale(c *gin.Context) {
	var req CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sale, err := h.service.CreateSale(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrUnknownGateway) || errors.Is(err, ErrInvalidSale) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to create sale", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create sale"})
		return
	}
	c.JSON(http.StatusCreated, sale)
}

func (h *Handler) ListSales(c *gin.Context) {
	filter := ListFilter{
		Status:  SaleStatus(c.Query("status")),
		AgentID: c.Query("agent_id"),
	}
	if v := c.Query("gateway"); v != "" {
		gateway, err := ParseGateway(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Gateway = gateway
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	sales, err := h.service.ListSales(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list sales", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sales"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sales, "count": len(sales)})
}

func (h *Handler) GetSale(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sale id"})
		return
	}

	sale, err := h.service.GetSale(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSaleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to get sale", zap.String("id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get sale"})
		return
	}
	c.JSON(http.StatusOK, sale)
}
