package commissions

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paymang/paymang-backend/pkg/workflows"
)

var (
	ErrNotFound      = errors.New("commission not found")
	ErrInvalidAmount = errors.New("settlement amount must be positive")
	ErrNoAgents      = errors.New("settlement has no agents")
)

// Status is the payout state of a commission record
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// NewStatusMachine returns the allowed payout transitions. Paid and
// cancelled are terminal.
func NewStatusMachine() *workflows.StateMachine {
	return workflows.NewStateMachine(workflows.Transitions{
		string(StatusPending):   {string(StatusApproved), string(StatusCancelled)},
		string(StatusApproved):  {string(StatusPaid), string(StatusCancelled)},
		string(StatusPaid):      {},
		string(StatusCancelled): {},
	})
}

// Commission is one agent's payout line for a sale or a sale milestone
type Commission struct {
	ID          uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SaleID      uuid.UUID       `json:"sale_id" gorm:"type:uuid;not null;index"`
	PaymentID   *uuid.UUID      `json:"payment_id,omitempty" gorm:"type:uuid;index"`
	AgentID     string          `json:"agent_id" gorm:"type:varchar(64);not null;index"`
	Role        Role            `json:"role" gorm:"type:varchar(20);not null"`
	Milestone   int             `json:"milestone" gorm:"not null;default:0"`
	BaseAmount  decimal.Decimal `json:"base_amount" gorm:"type:numeric(14,2);not null"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
	Percentage  decimal.Decimal `json:"percentage" gorm:"type:numeric(7,4);not null"`
	Status      Status          `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	ClawbackOf  *uuid.UUID      `json:"clawback_of,omitempty" gorm:"type:uuid"`
	ApprovedAt  *time.Time      `json:"approved_at,omitempty"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	CancelledAt *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (Commission) TableName() string {
	return "commissions"
}

// Agents names the agent filling each role on a sale. An empty ID means the
// role did not take part.
type Agents struct {
	Coach  string `json:"coach,omitempty"`
	Closer string `json:"closer,omitempty"`
	Setter string `json:"setter,omitempty"`
}

// RoleSet flags the roles that have an agent
func (a Agents) RoleSet() RoleSet {
	return RoleSet{Coach: a.Coach != "", Closer: a.Closer != "", Setter: a.Setter != ""}
}

// For returns the agent filling role
func (a Agents) For(role Role) string {
	switch role {
	case RoleCoach:
		return a.Coach
	case RoleCloser:
		return a.Closer
	case RoleSetter:
		return a.Setter
	}
	return ""
}

// SettlementRequest asks for the commissions owed on a received payment.
// A zero Milestone settles the full sale amount.
type SettlementRequest struct {
	SaleID    uuid.UUID
	PaymentID *uuid.UUID
	Amount    decimal.Decimal
	Milestone Milestone
	Agents    Agents
}

// ListFilter narrows commission listings
type ListFilter struct {
	SaleID  *uuid.UUID
	AgentID string
	Status  Status
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

// PreviewRequest runs the calculator without persisting anything
type PreviewRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Milestone *int            `json:"milestone"`
	Roles     RoleSet         `json:"roles"`
}

// Preview is the calculator output for a PreviewRequest
type Preview struct {
	Amount          decimal.Decimal  `json:"amount"`
	Milestone       int              `json:"milestone,omitempty"`
	MilestoneAmount *decimal.Decimal `json:"milestone_amount,omitempty"`
	Results         []Result         `json:"results"`
}
