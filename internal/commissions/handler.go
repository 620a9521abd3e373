package commissions

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"paymang/paymang-backend/pkg/workflows"
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
	commissions := r.Group("/commissions")
	{
		commissions.POST("/preview", h.Preview)
		commissions.GET("", h.List)
		commissions.POST("/:id/pay", h.MarkPaid)
	}
}

func (h *Handler) Preview(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	preview, err := h.service.Preview(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (h *Handler) List(c *gin.Context) {
	filter := ListFilter{
		AgentID: c.Query("agent_id"),
		Status:  Status(c.Query("status")),
	}
	if v := c.Query("sale_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sale_id"})
			return
		}
		filter.SaleID = &id
	}
	for param, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		if v := c.Query(param); v != "" {
			t, err := time.Parse(time.DateOnly, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param + " date, expected YYYY-MM-DD"})
				return
			}
			*dst = &t
		}
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list commissions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list commissions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  records,
		"count": len(records),
		"total": Total(records).StringFixed(Cents),
	})
}

func (h *Handler) MarkPaid(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid commission id"})
		return
	}

	record, err := h.service.MarkPaid(c.Request.Context(), id)
	if err != nil {
		var te *workflows.TransitionError
		switch {
		case errors.Is(err, ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.As(err, &te):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Failed to mark commission paid", zap.String("id", id.String()), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark commission paid"})
		}
		return
	}
	c.JSON(http.StatusOK, record)
}
