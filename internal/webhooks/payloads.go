package webhooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"paymang/paymang-backend/internal/commissions"
	"paymang/paymang-backend/internal/sales"
)

// errIgnored marks an event type that carries no payment
var errIgnored = errors.New("event type not handled")

// errInvalidPayload wraps any malformed notification
var errInvalidPayload = errors.New("invalid webhook payload")

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string            `json:"id"`
			ClientReferenceID string            `json:"client_reference_id"`
			AmountTotal       *int64            `json:"amount_total"`
			AmountRefunded    *int64            `json:"amount_refunded"`
			Currency          string            `json:"currency"`
			Metadata          map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// parseStripe maps a Stripe event. Amounts arrive in cents.
func parseStripe(body []byte) (sales.PaymentEvent, error) {
	var evt stripeEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return sales.PaymentEvent{}, fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	obj := evt.Data.Object

	out := sales.PaymentEvent{Gateway: sales.GatewayStripe, EventID: evt.ID, Payload: body}
	switch evt.Type {
	case "checkout.session.completed":
		out.Kind = sales.PaymentFull
		out.SaleRef = obj.ClientReferenceID
		out.Amount = cents(obj.AmountTotal)
	case "charge.refunded":
		out.Kind = sales.PaymentRefund
		out.SaleRef = obj.Metadata["sale_id"]
		out.Amount = cents(obj.AmountRefunded)
	default:
		return out, errIgnored
	}

	if out.EventID == "" || out.SaleRef == "" {
		return out, fmt.Errorf("%w: stripe %s without id or sale reference", errInvalidPayload, evt.Type)
	}
	return out, nil
}

type hotmartEvent struct {
	ID    string `json:"id"`
	Event string `json:"event"`
	Data  struct {
		Purchase struct {
			Transaction string `json:"transaction"`
			Status      string `json:"status"`
			Price       struct {
				Value        *float64 `json:"value"`
				CurrencyCode string   `json:"currency_value"`
			} `json:"price"`
		} `json:"purchase"`
	} `json:"data"`
}

func parseHotmart(body []byte) (sales.PaymentEvent, error) {
	var evt hotmartEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return sales.PaymentEvent{}, fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	purchase := evt.Data.Purchase

	out := sales.PaymentEvent{
		Gateway: sales.GatewayHotmart,
		EventID: evt.ID,
		SaleRef: purchase.Transaction,
		Payload: body,
	}
	switch strings.ToUpper(evt.Event) {
	case "PURCHASE_APPROVED", "PURCHASE_COMPLETE":
		out.Kind = sales.PaymentFull
	case "PURCHASE_REFUNDED", "PURCHASE_CHARGEBACK", "PURCHASE_CANCELED":
		out.Kind = sales.PaymentRefund
	default:
		return out, errIgnored
	}
	if purchase.Price.Value != nil {
		v := decimal.NewFromFloat(*purchase.Price.Value)
		out.Amount = &v
	}

	if out.SaleRef == "" {
		return out, fmt.Errorf("%w: hotmart %s without transaction", errInvalidPayload, evt.Event)
	}
	if out.EventID == "" {
		out.EventID = purchase.Transaction + ":" + strings.ToUpper(evt.Event)
	}
	return out, nil
}

type sequraEvent struct {
	EventID   string `json:"event_id"`
	Event     string `json:"event"`
	OrderRef  string `json:"order_ref"`
	Milestone *int   `json:"milestone"`
}

// parseSequra maps a seQura installment notification. The first milestone
// is due on approval; later ones arrive as milestone_paid.
func parseSequra(body []byte) (sales.PaymentEvent, error) {
	var evt sequraEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return sales.PaymentEvent{}, fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	if evt.OrderRef == "" {
		return sales.PaymentEvent{}, fmt.Errorf("%w: sequra event without order_ref", errInvalidPayload)
	}

	out := sales.PaymentEvent{Gateway: sales.GatewaySequra, EventID: evt.EventID, SaleRef: evt.OrderRef, Payload: body}
	switch strings.ToLower(evt.Event) {
	case "approved":
		out.Kind = sales.PaymentMilestone
		out.Milestone = commissions.MilestoneInitial
	case "milestone_paid":
		if evt.Milestone == nil {
			return out, fmt.Errorf("%w: milestone_paid without milestone", commissions.ErrInvalidMilestone)
		}
		m, err := commissions.MilestoneFromIndex(*evt.Milestone)
		if err != nil {
			return out, err
		}
		if m == commissions.MilestoneInitial {
			return out, fmt.Errorf("%w: milestone 1 is settled on approval", commissions.ErrInvalidMilestone)
		}
		out.Kind = sales.PaymentMilestone
		out.Milestone = m
	case "cancelled":
		out.Kind = sales.PaymentRefund
	default:
		return out, errIgnored
	}

	if out.EventID == "" {
		out.EventID = fmt.Sprintf("%s:%s", evt.OrderRef, strings.ToLower(evt.Event))
		if !out.Milestone.IsZero() {
			out.EventID = fmt.Sprintf("%s:%d", out.EventID, out.Milestone.Index())
		}
	}
	return out, nil
}

func cents(v *int64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.New(*v, -2)
	return &d
}
