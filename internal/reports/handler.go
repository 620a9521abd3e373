package reports

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paymang/paymang-backend/internal/reports/export"
)

// Handler handles HTTP requests for reports
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new reports handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers all report routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/reports")
	{
		reports.GET("/dashboard", h.getDashboard)
		reports.GET("/payouts", h.getPayouts)
	}
}

// getDashboard handles GET /api/v1/reports/dashboard
func (h *Handler) getDashboard(c *gin.Context) {
	dashboard, err := h.service.Dashboard(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to build dashboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// getPayouts handles GET /api/v1/reports/payouts
//
// from and to are inclusive dates; both default to the previous calendar
// month. Without a format the report is returned as JSON.
func (h *Handler) getPayouts(c *gin.Context) {
	period, err := h.parsePeriod(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	agentID := c.Query("agent_id")

	if c.Query("format") == "" {
		report, err := h.service.Payouts(c.Request.Context(), period, agentID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
		return
	}

	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := h.service.Export(c.Request.Context(), period, agentID, format, &buf); err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+FileName(period, format)+`"`)
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

func (h *Handler) parsePeriod(c *gin.Context) (Period, error) {
	period := PreviousMonth(h.service.now().UTC())

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return Period{}, errors.New("invalid from date, expected YYYY-MM-DD")
		}
		period.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return Period{}, errors.New("invalid to date, expected YYYY-MM-DD")
		}
		period.To = t.AddDate(0, 0, 1)
	}
	return period, period.Validate()
}

func (h *Handler) respondError(c *gin.Context, err error) {
	if errors.Is(err, ErrInvalidPeriod) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.logger.Error("Failed to build payout report", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
