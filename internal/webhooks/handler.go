package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paymang/paymang-backend/internal/commissions"
	"paymang/paymang-backend/internal/sales"
	"paymang/paymang-backend/internal/settings"
	"paymang/paymang-backend/pkg/workflows"
)

const maxPayloadBytes = 1 << 20

// PaymentRecorder applies normalized gateway events.
// *sales.Service satisfies it.
type PaymentRecorder interface {
	RecordPayment(ctx context.Context, event sales.PaymentEvent) (*sales.PaymentResult, error)
}

// GatewaySettings reports which gateways are enabled.
// *settings.Resolver satisfies it.
type GatewaySettings interface {
	StripeConfig(ctx context.Context) settings.StripeConfig
	HotmartConfig(ctx context.Context) settings.HotmartConfig
	SequraConfig(ctx context.Context) settings.SequraConfig
}

type Handler struct {
	recorder PaymentRecorder
	gateways GatewaySettings
	logger   *zap.Logger
}

func NewHandler(recorder PaymentRecorder, gateways GatewaySettings, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{recorder: recorder, gateways: gateways, logger: logger}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/stripe", h.Stripe)
		webhooks.POST("/hotmart", h.Hotmart)
		webhooks.POST("/sequra", h.Sequra)
	}
}

func (h *Handler) Stripe(c *gin.Context) {
	enabled := h.gateways.StripeConfig(c.Request.Context()).Enabled
	h.process(c, sales.GatewayStripe, enabled, parseStripe)
}

func (h *Handler) Hotmart(c *gin.Context) {
	enabled := h.gateways.HotmartConfig(c.Request.Context()).Enabled
	h.process(c, sales.GatewayHotmart, enabled, parseHotmart)
}

func (h *Handler) Sequra(c *gin.Context) {
	enabled := h.gateways.SequraConfig(c.Request.Context()).Enabled
	h.process(c, sales.GatewaySequra, enabled, parseSequra)
}

func (h *Handler) process(c *gin.Context, gateway sales.Gateway, enabled bool, parse func([]byte) (sales.PaymentEvent, error)) {
	log := h.logger.With(zap.String("gateway", string(gateway)))

	if !enabled {
		log.Info("Webhook received for disabled gateway")
		c.JSON(http.StatusAccepted, gin.H{"status": "disabled"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	event, err := parse(body)
	switch {
	case errors.Is(err, errIgnored):
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	case err != nil:
		log.Warn("Rejected webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log = log.With(zap.String("event_id", event.EventID), zap.String("sale_ref", event.SaleRef))

	result, err := h.recorder.RecordPayment(c.Request.Context(), event)
	if err != nil {
		var te *workflows.TransitionError
		switch {
		case errors.Is(err, sales.ErrDuplicateEvent):
			c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		case errors.Is(err, sales.ErrSaleNotFound):
			log.Warn("Webhook for unknown sale", zap.Error(err))
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, commissions.ErrInvalidMilestone), errors.Is(err, sales.ErrInvalidSale):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.As(err, &te):
			log.Warn("Webhook does not apply to sale status", zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": err.Error()})
		default:
			log.Error("Failed to process webhook", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process webhook"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "processed",
		"sale_id":     result.Sale.ID,
		"sale_status": result.Sale.Status,
		"commissions": len(result.Commissions),
	})
}
