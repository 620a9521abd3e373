package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paymang/paymang-backend/internal/commissions"
	"paymang/paymang-backend/internal/settings"
	"paymang/paymang-backend/pkg/workflows"
)

// Ledger is the commission side of payment processing.
// *commissions.Service satisfies it.
type Ledger interface {
	Settle(ctx context.Context, req commissions.SettlementRequest) ([]commissions.Commission, error)
	Reverse(ctx context.Context, saleID uuid.UUID, paymentID *uuid.UUID) ([]commissions.Commission, error)
	Calculator() *commissions.Calculator
}

// CompanySource supplies the company defaults applied to new sales
type CompanySource interface {
	CompanyInfo(ctx context.Context) settings.CompanyInfo
}

// Service records sales and routes gateway payments into the commission ledger
type Service struct {
	repo     Repository
	ledger   Ledger
	company  CompanySource
	statuses *workflows.StateMachine
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new sales service
func NewService(repo Repository, ledger Ledger, company CompanySource, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		ledger:   ledger,
		company:  company,
		statuses: NewSaleStatusMachine(),
		logger:   logger,
		now:      time.Now,
	}
}

// CreateSale registers a pending sale
func (s *Service) CreateSale(ctx context.Context, req CreateSaleRequest) (*Sale, error) {
	gateway, err := ParseGateway(req.Gateway)
	if err != nil {
		return nil, err
	}
	if !req.TotalAmount.IsPositive() {
		return nil, fmt.Errorf("%w: total_amount must be positive", ErrInvalidSale)
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.company.CompanyInfo(ctx).Currency
	}

	sale := &Sale{
		ID:           uuid.New(),
		StudentName:  strings.TrimSpace(req.StudentName),
		StudentEmail: strings.ToLower(strings.TrimSpace(req.StudentEmail)),
		Product:      strings.TrimSpace(req.Product),
		Gateway:      gateway,
		ExternalRef:  optional(req.ExternalRef),
		TotalAmount:  commissions.Round(req.TotalAmount),
		Currency:     currency,
		CoachID:      optional(req.CoachID),
		CloserID:     optional(req.CloserID),
		SetterID:     optional(req.SetterID),
		Status:       SaleStatusPending,
	}
	if err := s.repo.CreateSale(ctx, sale); err != nil {
		return nil, fmt.Errorf("failed to create sale: %w", err)
	}

	s.logger.Info("Sale created",
		zap.String("sale_id", sale.ID.String()),
		zap.String("gateway", string(gateway)),
		zap.String("total_amount", sale.TotalAmount.StringFixed(commissions.Cents)),
	)
	return sale, nil
}

func (s *Service) GetSale(ctx context.Context, id uuid.UUID) (*Sale, error) {
	return s.repo.GetSale(ctx, id)
}

func (s *Service) ListSales(ctx context.Context, filter ListFilter) ([]Sale, error) {
	return s.repo.ListSales(ctx, filter)
}

// RecordPayment applies a gateway event to its sale exactly once and settles
// or reverses the matching commissions
func (s *Service) RecordPayment(ctx context.Context, event PaymentEvent) (*PaymentResult, error) {
	if event.EventID == "" {
		return nil, fmt.Errorf("%w: missing event id", ErrInvalidSale)
	}

	exists, err := s.repo.PaymentExists(ctx, event.Gateway, event.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to check payment event: %w", err)
	}
	if exists {
		return nil, ErrDuplicateEvent
	}

	sale, err := s.findSale(ctx, event.Gateway, event.SaleRef)
	if err != nil {
		return nil, err
	}

	if event.Kind == PaymentMilestone && !event.Milestone.IsZero() {
		// Gateways may resend a tranche under a fresh event id.
		settled, err := s.repo.MilestoneRecorded(ctx, sale.ID, event.Milestone.Index())
		if err != nil {
			return nil, fmt.Errorf("failed to check milestone payment: %w", err)
		}
		if settled {
			return nil, fmt.Errorf("%w: milestone %d of sale %s already recorded", ErrDuplicateEvent, event.Milestone.Index(), sale.ID)
		}
	}

	next, err := s.nextStatus(sale, event)
	if err != nil {
		return nil, err
	}

	now := s.now()
	payment := &Payment{
		ID:              uuid.New(),
		SaleID:          sale.ID,
		Gateway:         event.Gateway,
		ExternalEventID: event.EventID,
		Kind:            event.Kind,
		Amount:          s.paymentAmount(ctx, sale, event),
		Payload:         event.Payload,
		ReceivedAt:      now,
	}
	if event.Kind == PaymentMilestone {
		payment.Milestone = event.Milestone.Index()
	}

	sale.Status = next
	if next == SaleStatusPaid && sale.PaidAt == nil {
		sale.PaidAt = &now
	}
	if err := s.repo.SavePayment(ctx, sale, payment); err != nil {
		if errors.Is(err, ErrDuplicateEvent) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	records, err := s.applyToLedger(ctx, sale, payment, event)
	if err != nil {
		s.logger.Error("Payment recorded but commission ledger update failed",
			zap.String("sale_id", sale.ID.String()),
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to update commissions: %w", err)
	}

	s.logger.Info("Payment recorded",
		zap.String("sale_id", sale.ID.String()),
		zap.String("gateway", string(event.Gateway)),
		zap.String("event_id", event.EventID),
		zap.String("kind", string(event.Kind)),
		zap.String("status", string(sale.Status)),
		zap.Int("commissions", len(records)),
	)
	return &PaymentResult{Sale: sale, Payment: payment, Commissions: records}, nil
}

func (s *Service) findSale(ctx context.Context, gateway Gateway, ref string) (*Sale, error) {
	if id, err := uuid.Parse(ref); err == nil {
		sale, err := s.repo.GetSale(ctx, id)
		if err == nil && sale.Gateway != gateway {
			return nil, fmt.Errorf("%w: sale %s is not a %s sale", ErrSaleNotFound, id, gateway)
		}
		return sale, err
	}
	return s.repo.GetSaleByExternalRef(ctx, gateway, ref)
}

func (s *Service) nextStatus(sale *Sale, event PaymentEvent) (SaleStatus, error) {
	var next SaleStatus
	switch event.Kind {
	case PaymentFull:
		next = SaleStatusPaid
	case PaymentMilestone:
		if event.Milestone.IsZero() {
			return "", commissions.ErrInvalidMilestone
		}
		// An earlier tranche arriving after the final one is still settled.
		if sale.Status == SaleStatusPaid {
			return sale.Status, nil
		}
		next = SaleStatusPartiallyPaid
		if event.Milestone.IsFinal() {
			next = SaleStatusPaid
		}
	case PaymentRefund:
		next = SaleStatusRefunded
		if sale.Status == SaleStatusPending {
			next = SaleStatusCancelled
		}
	default:
		return "", fmt.Errorf("%w: unknown payment kind %q", ErrInvalidSale, event.Kind)
	}

	if err := s.statuses.Transition(string(sale.Status), string(next)); err != nil {
		return "", fmt.Errorf("sale %s: %w", sale.ID, err)
	}
	return next, nil
}

func (s *Service) paymentAmount(ctx context.Context, sale *Sale, event PaymentEvent) decimal.Decimal {
	amount := sale.TotalAmount
	switch {
	case event.Amount != nil:
		amount = event.Amount.Abs()
	case event.Kind == PaymentMilestone:
		amount = s.ledger.Calculator().MilestoneAmount(ctx, sale.TotalAmount, event.Milestone)
	}
	amount = commissions.Round(amount)
	if event.Kind == PaymentRefund {
		return amount.Neg()
	}
	return amount
}

func (s *Service) applyToLedger(ctx context.Context, sale *Sale, payment *Payment, event PaymentEvent) ([]commissions.Commission, error) {
	agents := sale.Agents()
	switch event.Kind {
	case PaymentRefund:
		return s.ledger.Reverse(ctx, sale.ID, &payment.ID)
	case PaymentMilestone:
		if agents.RoleSet().Empty() {
			return nil, nil
		}
		return s.ledger.Settle(ctx, commissions.SettlementRequest{
			SaleID:    sale.ID,
			PaymentID: &payment.ID,
			Amount:    sale.TotalAmount,
			Milestone: event.Milestone,
			Agents:    agents,
		})
	default:
		if agents.RoleSet().Empty() || !payment.Amount.IsPositive() {
			return nil, nil
		}
		return s.ledger.Settle(ctx, commissions.SettlementRequest{
			SaleID:    sale.ID,
			PaymentID: &payment.ID,
			Amount:    payment.Amount,
			Agents:    agents,
		})
	}
}
