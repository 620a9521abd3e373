package reports

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paymang/paymang-backend/internal/reports/export"
)

const (
	dashboardKey = "dashboard"
	dashboardTTL = 5 * time.Minute
)

// Service handles reporting business logic
type Service struct {
	repo   Repository
	cache  *cache.Cache
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new reports service
func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		cache:  cache.New(dashboardTTL, 2*dashboardTTL),
		logger: logger,
		now:    time.Now,
	}
}

// Dashboard returns commission and sales totals, cached for five minutes
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	if cached, ok := s.cache.Get(dashboardKey); ok {
		return cached.(*Dashboard), nil
	}

	totals, err := s.repo.StatusTotals(ctx)
	if err != nil {
		return nil, err
	}
	sales, err := s.repo.SalesByStatus(ctx)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		Commissions: totals,
		Sales:       sales,
		Payable:     decimal.Zero,
		GeneratedAt: s.now().UTC(),
	}
	for _, t := range totals {
		if t.Status == "approved" {
			d.Payable = t.Total
		}
	}

	s.cache.Set(dashboardKey, d, cache.DefaultExpiration)
	return d, nil
}

// InvalidateDashboard drops the cached dashboard
func (s *Service) InvalidateDashboard() {
	s.cache.Delete(dashboardKey)
}

// Payouts returns the payable commissions of a period, optionally for one agent
func (s *Service) Payouts(ctx context.Context, period Period, agentID string) (*PayoutReport, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	summary, err := s.repo.PayoutSummary(ctx, period.From, period.To)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.PayoutLines(ctx, period.From, period.To)
	if err != nil {
		return nil, err
	}

	if agentID != "" {
		summary = filter(summary, func(r PayoutSummaryRow) bool { return r.AgentID == agentID })
		lines = filter(lines, func(l PayoutLine) bool { return l.AgentID == agentID })
	}

	report := &PayoutReport{Period: period, Summary: summary, Lines: lines, Total: decimal.Zero}
	for _, l := range lines {
		report.Total = report.Total.Add(l.Amount)
	}
	return report, nil
}

// Export renders the payouts of a period to w
func (s *Service) Export(ctx context.Context, period Period, agentID string, format export.Format, w io.Writer) error {
	report, err := s.Payouts(ctx, period, agentID)
	if err != nil {
		return err
	}

	if err := export.Write(w, format, PayoutTable(report, agentID)); err != nil {
		return fmt.Errorf("failed to render %s export: %w", format, err)
	}

	s.logger.Info("Payout export rendered",
		zap.String("period", period.Label()),
		zap.String("format", string(format)),
		zap.Int("lines", len(report.Lines)))
	return nil
}

// PayoutTable lays out a payout report for export
func PayoutTable(report *PayoutReport, agentID string) export.Table {
	title := "Payouts " + report.Period.Label()
	if agentID != "" {
		title = "Payout statement " + agentID
	}

	t := export.Table{
		Title: title,
		Subtitle: fmt.Sprintf("%s to %s",
			report.Period.From.Format(time.DateOnly),
			report.Period.To.AddDate(0, 0, -1).Format(time.DateOnly)),
		Columns: []export.Column{
			{Key: "agent_id", Label: "Agent"},
			{Key: "role", Label: "Role", Width: 25},
			{Key: "sale_id", Label: "Sale"},
			{Key: "milestone", Label: "Milestone", Width: 22},
			{Key: "status", Label: "Status", Width: 22},
			{Key: "created_at", Label: "Date", Width: 25},
			{Key: "base_amount", Label: "Base", Numeric: true, Width: 30},
			{Key: "amount", Label: "Commission", Numeric: true, Width: 30},
		},
		Rows: make([][]interface{}, 0, len(report.Lines)),
	}

	for _, l := range report.Lines {
		t.Rows = append(t.Rows, []interface{}{
			l.AgentID,
			l.Role,
			l.SaleID.String(),
			milestoneLabel(l.Milestone),
			l.Status,
			l.CreatedAt.Format(time.DateOnly),
			l.BaseAmount,
			l.Amount,
		})
	}
	t.Footer = []interface{}{"Total", "", "", "", "", "", "", report.Total}
	return t
}

// FileName is the object name of a payout export
func FileName(period Period, format export.Format) string {
	return "payouts-" + period.Label() + format.Extension()
}

func milestoneLabel(m int) string {
	if m == 0 {
		return "full"
	}
	return strconv.Itoa(m)
}

func filter[T any](in []T, keep func(T) bool) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
