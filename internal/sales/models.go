package sales

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"paymang/paymang-backend/internal/commissions"
	"paymang/paymang-backend/pkg/workflows"
)

var (
	ErrSaleNotFound   = errors.New("sale not found")
	ErrDuplicateEvent = errors.New("payment event already processed")
	ErrUnknownGateway = errors.New("unknown payment gateway")
	ErrInvalidSale    = errors.New("invalid sale")
)

// Gateway identifies the payment provider a sale was charged through
type Gateway string

const (
	GatewayStripe  Gateway = "stripe"
	GatewayHotmart Gateway = "hotmart"
	GatewaySequra  Gateway = "sequra"
)

// ParseGateway accepts any casing of a known gateway
func ParseGateway(s string) (Gateway, error) {
	switch g := Gateway(strings.ToLower(strings.TrimSpace(s))); g {
	case GatewayStripe, GatewayHotmart, GatewaySequra:
		return g, nil
	}
	return "", ErrUnknownGateway
}

// SaleStatus is the collection state of a sale
type SaleStatus string

const (
	SaleStatusPending       SaleStatus = "pending"
	SaleStatusPartiallyPaid SaleStatus = "partially_paid"
	SaleStatusPaid          SaleStatus = "paid"
	SaleStatusRefunded      SaleStatus = "refunded"
	SaleStatusCancelled     SaleStatus = "cancelled"
)

// NewSaleStatusMachine returns the allowed sale status transitions
func NewSaleStatusMachine() *workflows.StateMachine {
	return workflows.NewStateMachine(workflows.Transitions{
		string(SaleStatusPending):       {string(SaleStatusPartiallyPaid), string(SaleStatusPaid), string(SaleStatusCancelled)},
		string(SaleStatusPartiallyPaid): {string(SaleStatusPartiallyPaid), string(SaleStatusPaid), string(SaleStatusRefunded), string(SaleStatusCancelled)},
		string(SaleStatusPaid):          {string(SaleStatusRefunded)},
		string(SaleStatusRefunded):      {},
		string(SaleStatusCancelled):     {},
	})
}

// Sale is a student enrollment charged through one gateway
type Sale struct {
	ID           uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StudentName  string          `json:"student_name" gorm:"type:varchar(255);not null"`
	StudentEmail string          `json:"student_email" gorm:"type:varchar(255);not null;index"`
	Product      string          `json:"product" gorm:"type:varchar(255);not null"`
	Gateway      Gateway         `json:"gateway" gorm:"type:varchar(20);not null;uniqueIndex:idx_sales_gateway_ref"`
	ExternalRef  *string         `json:"external_ref,omitempty" gorm:"type:varchar(128);uniqueIndex:idx_sales_gateway_ref"`
	TotalAmount  decimal.Decimal `json:"total_amount" gorm:"type:numeric(14,2);not null"`
	Currency     string          `json:"currency" gorm:"type:varchar(3);not null"`
	CoachID      *string         `json:"coach_id,omitempty" gorm:"type:varchar(64)"`
	CloserID     *string         `json:"closer_id,omitempty" gorm:"type:varchar(64)"`
	SetterID     *string         `json:"setter_id,omitempty" gorm:"type:varchar(64)"`
	Status       SaleStatus      `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	PaidAt       *time.Time      `json:"paid_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	Payments []Payment `json:"payments,omitempty" gorm:"foreignKey:SaleID"`
}

func (Sale) TableName() string {
	return "sales"
}

// Agents returns the agents assigned to the sale
func (s *Sale) Agents() commissions.Agents {
	return commissions.Agents{
		Coach:  deref(s.CoachID),
		Closer: deref(s.CloserID),
		Setter: deref(s.SetterID),
	}
}

// PaymentKind classifies a gateway payment event
type PaymentKind string

const (
	PaymentFull      PaymentKind = "full"
	PaymentMilestone PaymentKind = "milestone"
	PaymentRefund    PaymentKind = "refund"
)

// Payment is a processed gateway event against a sale
type Payment struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SaleID          uuid.UUID       `json:"sale_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_payments_sale_milestone,priority:1"`
	Gateway         Gateway         `json:"gateway" gorm:"type:varchar(20);not null;uniqueIndex:idx_payments_gateway_event"`
	ExternalEventID string          `json:"external_event_id" gorm:"type:varchar(128);not null;uniqueIndex:idx_payments_gateway_event"`
	Kind            PaymentKind     `json:"kind" gorm:"type:varchar(20);not null"`
	Milestone       int             `json:"milestone" gorm:"not null;default:0;uniqueIndex:idx_payments_sale_milestone,priority:2,where:kind = 'milestone'"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
	Payload         datatypes.JSON  `json:"payload,omitempty" gorm:"type:jsonb"`
	ReceivedAt      time.Time       `json:"received_at" gorm:"not null"`
}

func (Payment) TableName() string {
	return "sale_payments"
}

// PaymentEvent is a normalized gateway notification
type PaymentEvent struct {
	Gateway Gateway
	EventID string
	// SaleRef is either the sale ID or the gateway's order reference
	SaleRef   string
	Kind      PaymentKind
	Milestone commissions.Milestone
	// Amount is nil when the gateway does not report one; the sale total
	// (or its milestone share) is used instead
	Amount  *decimal.Decimal
	Payload []byte
}

// PaymentResult is what processing a PaymentEvent changed
type PaymentResult struct {
	Sale        *Sale                    `json:"sale"`
	Payment     *Payment                 `json:"payment"`
	Commissions []commissions.Commission `json:"commissions"`
}

// CreateSaleRequest registers a sale before the gateway confirms payment
type CreateSaleRequest struct {
	StudentName  string          `json:"student_name" binding:"required"`
	StudentEmail string          `json:"student_email" binding:"required,email"`
	Product      string          `json:"product" binding:"required"`
	Gateway      string          `json:"gateway" binding:"required"`
	ExternalRef  string          `json:"external_ref"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Currency     string          `json:"currency"`
	CoachID      string          `json:"coach_id"`
	CloserID     string          `json:"closer_id"`
	SetterID     string          `json:"setter_id"`
}

// ListFilter narrows sale listings
type ListFilter struct {
	Status  SaleStatus
	Gateway Gateway
	AgentID string
	Limit   int
	Offset  int
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
