package reports

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidPeriod = errors.New("invalid reporting period")

// PayoutLine is one payable commission record
type PayoutLine struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	AgentID    string          `json:"agent_id" db:"agent_id"`
	Role       string          `json:"role" db:"role"`
	SaleID     uuid.UUID       `json:"sale_id" db:"sale_id"`
	Milestone  int             `json:"milestone" db:"milestone"`
	Status     string          `json:"status" db:"status"`
	BaseAmount decimal.Decimal `json:"base_amount" db:"base_amount"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// PayoutSummaryRow aggregates payable commissions per agent and role
type PayoutSummaryRow struct {
	AgentID string          `json:"agent_id" db:"agent_id"`
	Role    string          `json:"role" db:"role"`
	Count   int             `json:"count" db:"count"`
	Total   decimal.Decimal `json:"total" db:"total"`
}

// StatusTotal is the count and sum of commissions in one status
type StatusTotal struct {
	Status string          `json:"status" db:"status"`
	Count  int             `json:"count" db:"count"`
	Total  decimal.Decimal `json:"total" db:"total"`
}

// SaleStatusCount is the number of sales in one status
type SaleStatusCount struct {
	Status string          `json:"status" db:"status"`
	Count  int             `json:"count" db:"count"`
	Amount decimal.Decimal `json:"amount" db:"amount"`
}

// Dashboard is the back-office overview
type Dashboard struct {
	Commissions []StatusTotal     `json:"commissions"`
	Sales       []SaleStatusCount `json:"sales"`
	Payable     decimal.Decimal   `json:"payable"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// Period is a half-open [From, To) interval
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (p Period) Validate() error {
	if p.From.IsZero() || p.To.IsZero() || !p.From.Before(p.To) {
		return ErrInvalidPeriod
	}
	return nil
}

// PreviousMonth returns the calendar month before now, in now's location
func PreviousMonth(now time.Time) Period {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return Period{From: first.AddDate(0, -1, 0), To: first}
}

// Label names the period for titles and file names
func (p Period) Label() string {
	if p.From.Day() == 1 && p.To.Equal(p.From.AddDate(0, 1, 0)) {
		return p.From.Format("2006-01")
	}
	return p.From.Format(time.DateOnly) + "_" + p.To.AddDate(0, 0, -1).Format(time.DateOnly)
}

// PayoutReport is the JSON form of a payout export
type PayoutReport struct {
	Period  Period             `json:"period"`
	Summary []PayoutSummaryRow `json:"summary"`
	Lines   []PayoutLine       `json:"lines"`
	Total   decimal.Decimal    `json:"total"`
}
