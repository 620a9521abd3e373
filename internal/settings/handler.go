package settings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
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
	settings := r.Group("/settings")
	{
		settings.GET("", h.List)
		settings.GET("/:key", h.Get)
		settings.PUT("/:key", h.Update)
	}
}

type updateSettingRequest struct {
	Value       json.RawMessage `json:"value" binding:"required"`
	Description string          `json:"description"`
}

func (h *Handler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.service.List(c.Request.Context())})
}

func (h *Handler) Get(c *gin.Context) {
	key, err := ParseKey(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	resolved, err := h.service.Get(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resolved)
}

func (h *Handler) Update(c *gin.Context) {
	key, err := ParseKey(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req updateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	setting, err := h.service.Update(c.Request.Context(), key, req.Value, req.Description)
	if err != nil {
		if errors.Is(err, ErrInvalidValue) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to update setting", zap.String("key", string(key)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update setting"})
		return
	}
	c.JSON(http.StatusOK, setting)
}
