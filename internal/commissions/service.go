package commissions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paymang/paymang-backend/pkg/workflows"
)

// Service settles, approves and pays commissions
type Service struct {
	repo     Repository
	calc     *Calculator
	statuses *workflows.StateMachine
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new commission service
func NewService(repo Repository, calc *Calculator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		calc:     calc,
		statuses: NewStatusMachine(),
		logger:   logger,
		now:      time.Now,
	}
}

// Calculator exposes the calculator the service settles with
func (s *Service) Calculator() *Calculator {
	return s.calc
}

// Settle computes and stores one pending commission per participating agent
func (s *Service) Settle(ctx context.Context, req SettlementRequest) ([]Commission, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	roles := req.Agents.RoleSet()
	if roles.Empty() {
		return nil, ErrNoAgents
	}

	var results []Result
	milestone := 0
	base := req.Amount
	if req.Milestone.IsZero() {
		results = s.calc.CommissionsForSale(ctx, req.Amount, roles)
	} else {
		milestone = req.Milestone.Index()
		base = s.calc.MilestoneAmount(ctx, req.Amount, req.Milestone)
		results = s.calc.MilestoneCommissions(ctx, req.Amount, req.Milestone, roles)
	}

	records := make([]Commission, 0, len(results))
	for _, r := range results {
		if r.Amount.IsZero() {
			s.logger.Warn("Skipping zero commission",
				zap.String("sale_id", req.SaleID.String()),
				zap.String("role", string(r.Role)),
				zap.String("percentage", r.Percentage.String()),
			)
			continue
		}
		records = append(records, Commission{
			ID:         uuid.New(),
			SaleID:     req.SaleID,
			PaymentID:  req.PaymentID,
			AgentID:    req.Agents.For(r.Role),
			Role:       r.Role,
			Milestone:  milestone,
			BaseAmount: base,
			Amount:     r.Amount,
			Percentage: r.Percentage,
			Status:     StatusPending,
		})
	}

	if err := s.repo.CreateBatch(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to store commissions: %w", err)
	}

	s.logger.Info("Commissions settled",
		zap.String("sale_id", req.SaleID.String()),
		zap.Int("milestone", milestone),
		zap.String("base_amount", base.StringFixed(Cents)),
		zap.Int("records", len(records)),
	)
	return records, nil
}

// Reverse cancels every open commission of a sale. Paid commissions are
// clawed back with a negative record when negative commissions are enabled.
func (s *Service) Reverse(ctx context.Context, saleID uuid.UUID, paymentID *uuid.UUID) ([]Commission, error) {
	existing, err := s.repo.ListBySale(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load commissions: %w", err)
	}

	now := s.now()
	clawedBack := make(map[uuid.UUID]bool)
	for _, c := range existing {
		if c.ClawbackOf != nil {
			clawedBack[*c.ClawbackOf] = true
		}
	}

	var cancelled, clawbacks []Commission
	for _, c := range existing {
		switch {
		case c.ClawbackOf != nil:
			continue
		case c.Status == StatusPaid:
			if !s.calc.NegativeCommissions() || clawedBack[c.ID] {
				continue
			}
			origin := c.ID
			clawbacks = append(clawbacks, Commission{
				ID:         uuid.New(),
				SaleID:     c.SaleID,
				PaymentID:  paymentID,
				AgentID:    c.AgentID,
				Role:       c.Role,
				Milestone:  c.Milestone,
				BaseAmount: c.BaseAmount.Neg(),
				Amount:     c.Amount.Neg(),
				Percentage: c.Percentage,
				Status:     StatusPending,
				ClawbackOf: &origin,
			})
		case s.statuses.CanTransition(string(c.Status), string(StatusCancelled)):
			c.Status = StatusCancelled
			c.CancelledAt = &now
			cancelled = append(cancelled, c)
		}
	}

	if err := s.repo.ApplyReversal(ctx, cancelled, clawbacks); err != nil {
		return nil, fmt.Errorf("failed to reverse commissions: %w", err)
	}

	s.logger.Info("Commissions reversed",
		zap.String("sale_id", saleID.String()),
		zap.Int("cancelled", len(cancelled)),
		zap.Int("clawbacks", len(clawbacks)),
	)
	return append(cancelled, clawbacks...), nil
}

// ApproveDue approves pending commissions created before the cutoff
func (s *Service) ApproveDue(ctx context.Context, before time.Time) (int, error) {
	due, err := s.repo.ListPendingBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending commissions: %w", err)
	}

	now := s.now()
	approved := 0
	for i := range due {
		c := &due[i]
		if err := s.statuses.Transition(string(c.Status), string(StatusApproved)); err != nil {
			continue
		}
		c.Status = StatusApproved
		c.ApprovedAt = &now
		if err := s.repo.Update(ctx, c); err != nil {
			s.logger.Error("Failed to approve commission", zap.String("id", c.ID.String()), zap.Error(err))
			continue
		}
		approved++
	}

	if approved > 0 {
		s.logger.Info("Commissions approved", zap.Int("count", approved), zap.Time("before", before))
	}
	return approved, nil
}

// MarkPaid records an approved commission as paid out
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID) (*Commission, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.statuses.Transition(string(c.Status), string(StatusPaid)); err != nil {
		return nil, err
	}

	now := s.now()
	c.Status = StatusPaid
	c.PaidAt = &now
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to mark commission paid: %w", err)
	}
	return c, nil
}

// List returns commissions matching filter
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Commission, error) {
	return s.repo.List(ctx, filter)
}

// Preview runs the calculator for req without storing anything
func (s *Service) Preview(ctx context.Context, req PreviewRequest) (*Preview, error) {
	out := &Preview{Amount: req.Amount}
	if req.Milestone == nil {
		out.Results = s.calc.CommissionsForSale(ctx, req.Amount, req.Roles)
		return out, nil
	}

	m, err := MilestoneFromIndex(*req.Milestone)
	if err != nil {
		return nil, err
	}
	sub := s.calc.MilestoneAmount(ctx, req.Amount, m)
	out.Milestone = m.Index()
	out.MilestoneAmount = &sub
	out.Results = s.calc.CommissionsForSale(ctx, sub, req.Roles)
	return out, nil
}

// Total sums commission amounts
func Total(records []Commission) decimal.Decimal {
	total := decimal.Zero
	for _, c := range records {
		total = total.Add(c.Amount)
	}
	return total
}
