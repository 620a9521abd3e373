package sales

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"paymang/paymang-backend/internal/commissions"
	"paymang/paymang-backend/internal/settings"
	"paymang/paymang-backend/pkg/workflows"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateSale(ctx context.Context, sale *Sale) error {
	return m.Called(ctx, sale).Error(0)
}

func (m *MockRepository) GetSale(ctx context.Context, id uuid.UUID) (*Sale, error) {
	args := m.Called(ctx, id)
	if s := args.Get(0); s != nil {
		return s.(*Sale), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) GetSaleByExternalRef(ctx context.Context, gateway Gateway, ref string) (*Sale, error) {
	args := m.Called(ctx, gateway, ref)
	if s := args.Get(0); s != nil {
		return s.(*Sale), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) ListSales(ctx context.Context, filter ListFilter) ([]Sale, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]Sale), args.Error(1)
}

func (m *MockRepository) PaymentExists(ctx context.Context, gateway Gateway, eventID string) (bool, error) {
	args := m.Called(ctx, gateway, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) MilestoneRecorded(ctx context.Context, saleID uuid.UUID, milestone int) (bool, error) {
	args := m.Called(ctx, saleID, milestone)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) SavePayment(ctx context.Context, sale *Sale, payment *Payment) error {
	return m.Called(ctx, sale, payment).Error(0)
}

// MockLedger is a mock implementation of Ledger backed by a real calculator
type MockLedger struct {
	mock.Mock
	calc *commissions.Calculator
}

func (m *MockLedger) Settle(ctx context.Context, req commissions.SettlementRequest) ([]commissions.Commission, error) {
	args := m.Called(ctx, req)
	return args.Get(0).([]commissions.Commission), args.Error(1)
}

func (m *MockLedger) Reverse(ctx context.Context, saleID uuid.UUID, paymentID *uuid.UUID) ([]commissions.Commission, error) {
	args := m.Called(ctx, saleID, paymentID)
	return args.Get(0).([]commissions.Commission), args.Error(1)
}

func (m *MockLedger) Calculator() *commissions.Calculator {
	return m.calc
}

type fixedTables struct{}

func (fixedTables) CommissionRates(context.Context) settings.RateTable {
	return settings.RateTable{"coach": 0.10, "closer": 0.08, "setter": 0.01}
}

func (fixedTables) MilestoneShares(context.Context) settings.MilestoneTable {
	return settings.MilestoneTable{"initial": 0.70, "second": 0.15, "final": 0.15}
}

func (fixedTables) CompanyInfo(context.Context) settings.CompanyInfo {
	return settings.CompanyInfo{Name: "PayMang", Currency: "EUR"}
}

func newTestService() (*Service, *MockRepository, *MockLedger) {
	repo := new(MockRepository)
	ledger := &MockLedger{calc: commissions.NewCalculator(fixedTables{})}
	svc := NewService(repo, ledger, fixedTables{}, nil)
	svc.now = func() time.Time { return time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC) }
	return svc, repo, ledger
}

func ptr(s string) *string { return &s }

func sequraSale() *Sale {
	return &Sale{
		ID:          uuid.New(),
		Gateway:     GatewaySequra,
		ExternalRef: ptr("SQ-1001"),
		TotalAmount: decimal.RequireFromString("2000.00"),
		CoachID:     ptr("ana"),
		Status:      SaleStatusPending,
	}
}

func TestCreateSale(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.On("CreateSale", mock.Anything, mock.AnythingOfType("*sales.Sale")).Return(nil).Once()

	sale, err := svc.CreateSale(context.Background(), CreateSaleRequest{
		StudentName:  " Lucia ",
		StudentEmail: "Lucia@Example.com",
		Product:      "Mentoring",
		Gateway:      "Stripe",
		TotalAmount:  decimal.RequireFromString("1500.005"),
		CoachID:      "ana",
		SetterID:     " ",
	})
	require.NoError(t, err)
	assert.Equal(t, GatewayStripe, sale.Gateway)
	assert.Equal(t, "lucia@example.com", sale.StudentEmail)
	assert.Equal(t, "Lucia", sale.StudentName)
	assert.Equal(t, "EUR", sale.Currency)
	assert.Equal(t, "1500.01", sale.TotalAmount.StringFixed(2))
	assert.Nil(t, sale.ExternalRef)
	assert.Nil(t, sale.SetterID)
	assert.Equal(t, commissions.RoleSet{Coach: true}, sale.Agents().RoleSet())
	assert.Equal(t, SaleStatusPending, sale.Status)
	repo.AssertExpectations(t)
}

func TestCreateSaleValidation(t *testing.T) {
	svc, repo, _ := newTestService()

	_, err := svc.CreateSale(context.Background(), CreateSaleRequest{Gateway: "paypal", TotalAmount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, ErrUnknownGateway)

	_, err = svc.CreateSale(context.Background(), CreateSaleRequest{Gateway: "hotmart"})
	assert.ErrorIs(t, err, ErrInvalidSale)

	repo.AssertNotCalled(t, "CreateSale", mock.Anything, mock.Anything)
}

func TestRecordMilestonePayment(t *testing.T) {
	svc, repo, ledger := newTestService()
	sale := sequraSale()

	repo.On("PaymentExists", mock.Anything, GatewaySequra, "evt-2").Return(false, nil)
	repo.On("GetSaleByExternalRef", mock.Anything, GatewaySequra, "SQ-1001").Return(sale, nil)
	repo.On("MilestoneRecorded", mock.Anything, sale.ID, 2).Return(false, nil)
	repo.On("SavePayment", mock.Anything, sale, mock.MatchedBy(func(p *Payment) bool {
		return p.Kind == PaymentMilestone && p.Milestone == 2 && p.Amount.StringFixed(2) == "300.00"
	})).Return(nil).Once()
	ledger.On("Settle", mock.Anything, mock.MatchedBy(func(req commissions.SettlementRequest) bool {
		return req.SaleID == sale.ID && req.Milestone == commissions.MilestoneSecond &&
			req.Amount.Equal(sale.TotalAmount) && req.Agents.Coach == "ana"
	})).Return([]commissions.Commission{{Amount: decimal.NewFromInt(30)}}, nil).Once()

	result, err := svc.RecordPayment(context.Background(), PaymentEvent{
		Gateway:   GatewaySequra,
		EventID:   "evt-2",
		SaleRef:   "SQ-1001",
		Kind:      PaymentMilestone,
		Milestone: commissions.MilestoneSecond,
	})
	require.NoError(t, err)
	assert.Equal(t, SaleStatusPartiallyPaid, result.Sale.Status)
	assert.Nil(t, result.Sale.PaidAt)
	assert.Len(t, result.Commissions, 1)
	repo.AssertExpectations(t)
	ledger.AssertExpectations(t)
}

func TestRecordFinalMilestoneMarksPaid(t *testing.T) {
	svc, repo, ledger := newTestService()
	sale := sequraSale()
	sale.Status = SaleStatusPartiallyPaid

	repo.On("PaymentExists", mock.Anything, GatewaySequra, "evt-3").Return(false, nil)
	repo.On("GetSaleByExternalRef", mock.Anything, GatewaySequra, "SQ-1001").Return(sale, nil)
	repo.On("MilestoneRecorded", mock.Anything, sale.ID, 3).Return(false, nil)
	repo.On("SavePayment", mock.Anything, sale, mock.Anything).Return(nil)
	ledger.On("Settle", mock.Anything, mock.Anything).Return([]commissions.Commission{}, nil)

	result, err := svc.RecordPayment(context.Background(), PaymentEvent{
		Gateway: GatewaySequra, EventID: "evt-3", SaleRef: "SQ-1001",
		Kind: PaymentMilestone, Milestone: commissions.MilestoneFinal,
	})
	require.NoError(t, err)
	assert.Equal(t, SaleStatusPaid, result.Sale.Status)
	require.NotNil(t, result.Sale.PaidAt)
}

func TestRecordLateMilestoneAfterFinal(t *testing.T) {
	svc, repo, ledger := newTestService()
	sale := sequraSale()
	sale.Status = SaleStatusPaid
	paidAt := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)
	sale.PaidAt = &paidAt

	repo.On("PaymentExists", mock.Anything, GatewaySequra, "evt-2b").Return(false, nil)
	repo.On("GetSaleByExternalRef", mock.Anything, GatewaySequra, "SQ-1001").Return(sale, nil)
	repo.On("MilestoneRecorded", mock.Anything, sale.ID, 2).Return(false, nil)
	repo.On("SavePayment", mock.Anything, sale, mock.MatchedBy(func(p *Payment) bool {
		return p.Kind == PaymentMilestone && p.Milestone == 2
	})).Return(nil).Once()
	ledger.On("Settle", mock.Anything, mock.MatchedBy(func(req commissions.SettlementRequest) bool {
		return req.SaleID == sale.ID && req.Milestone == commissions.MilestoneSecond
	})).Return([]commissions.Commission{{Amount: decimal.NewFromInt(30)}}, nil).Once()

	result, err := svc.RecordPayment(context.Background(), PaymentEvent{
		Gateway: GatewaySequra, EventID: "evt-2b", SaleRef: "SQ-1001",
		Kind: PaymentMilestone, Milestone: commissions.MilestoneSecond,
	})
	require.NoError(t, err)
	assert.Equal(t, SaleStatusPaid, result.Sale.Status)
	assert.Equal(t, paidAt, *result.Sale.PaidAt)
	assert.Len(t, result.Commissions, 1)
	repo.AssertExpectations(t)
	ledger.AssertExpectations(t)
}

func TestRecordRepeatedMilestoneUnderNewEventID(t *testing.T) {
	svc, repo, ledger := newTestService()
	sale := sequraSale()
	sale.Status = SaleStatusPartiallyPaid

	repo.On("PaymentExists", mock.Anything, GatewaySequra, "evt-2-resent").Return(false, nil)
	repo.On("GetSaleByExternalRef", mock.Anything, GatewaySequra, "SQ-1001").Return(sale, nil)
	repo.On("MilestoneRecorded", mock.Anything, sale.ID, 2).Return(true, nil)

	_, err := svc.RecordPayment(context.Background(), PaymentEvent{
		Gateway: GatewaySequra, EventID: "evt-2-resent", SaleRef: "SQ-1001",
		Kind: PaymentMilestone, Milestone: commissions.MilestoneSecond,
	})
	assert.ErrorIs(t, err, ErrDuplicateEvent)
	assert.Equal(t, SaleStatusPartiallyPaid, sale.Status)
	repo.AssertNotCalled(t, "SavePayment", mock.Anything, mock.Anything, mock.Anything)
	ledger.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything)
}

func TestRecordFullPaymentBySaleID(t *testing.T) {
	svc, repo, ledger := newTestService()
	sale := &Sale{
		ID: uuid.New(), Gateway: GatewayStripe, TotalAmount: decimal.NewFromInt(1000),
		CoachID: ptr("ana"), CloserID: ptr("ben"), Status: SaleStatusPending,
	}
	amount := decimal.RequireFromString("950.00")

	repo.On("PaymentExists", mock.Anything, GatewayStripe, "evt_1").Return(false, nil)
	repo.On("GetSale", mock.Anything, sale.ID).Return(sale, nil)
	repo.On("SavePayment", mock.Anything, sale, mock.Anything).Return(nil)
	ledger.On("Settle", mock.Anything, mock.MatchedBy(func(req commissions.SettlementRequest) bool {
		return req.Milestone.IsZero() && req.Amount.Equal(amount) && req.PaymentID != nil
	})).Return([]commissions.Commission{{}, {}}, nil).Once()

	result, err := svc.RecordPayment(context.Background(), PaymentEvent{
		Gateway: GatewayStripe, EventID: "evt_1", SaleRef: sale.ID.String(),
		Kind: PaymentFull, Amount: &amount, Payload: []byte(`{"id":"evt_1"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, SaleStatusPaid, result.Sale.Status)
	assert.Equal(t, "950.00", result.Payment.Amount.StringFixed(2))
	assert.JSONEq(t, `{"id":"evt_1"}`, string(result.Payment.Payload))
	ledger.AssertExpectations(t)
}

func TestRecordPaymentGatewayMismatch(t *testing.T) {
	svc, repo, _ := newTestService()
	sale := &Sale{ID: uuid.New(), Gateway: GatewayHotmart, Status: SaleStatusPending}

	repo.On("PaymentExists", mock.Anything, GatewayStripe, "evt_9").Return(false, nil)
	repo.On("GetSale", mock.Anything, sale.ID).Return(sale, nil)

	_, err := svc.RecordPayment(context.Background(), PaymentEvent{
		Gateway: GatewayStripe, EventID: "evt_9", SaleRef: sale.ID.String(), Kind: PaymentFull,
	})
	assert.ErrorIs(t, err, ErrSaleNotFound)
}

func TestRecordPaymentDuplicate(t *testing.T) {
	svc, repo, ledger := newTestService()
	repo.On("PaymentExists", mock.Anything, GatewayHotmart, "HP-1").Return(true, nil)

	_, err := svc.RecordPayment(context.Background(), PaymentEvent{
		Gateway: GatewayHotmart, EventID: "HP-1", SaleRef: "HP123", Kind: PaymentFull,
	})
	assert.ErrorIs(t, err, ErrDuplicateEvent)
	repo.AssertNotCalled(t, "SavePayment", mock.Anything, mock.Anything, mock.Anything)
	ledger.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything)
}

func TestRecordRefund(t *testing.T) {
	svc, repo, ledger := newTestService()
	sale := sequraSale()
	sale.Status = SaleStatusPaid

	repo.On("PaymentExists", mock.Anything, GatewaySequra, "evt-r").Return(false, nil)
	repo.On("GetSaleByExternalRef", mock.Anything, GatewaySequra, "SQ-1001").Return(sale, nil)
	repo.On("SavePayment", mock.Anything, sale, mock.MatchedBy(func(p *Payment) bool {
		return p.Kind == PaymentRefund && p.Amount.StringFixed(2) == "-2000.00"
	})).Return(nil)
	ledger.On("Reverse", mock.Anything, sale.ID, mock.AnythingOfType("*uuid.UUID")).
		Return([]commissions.Commission{{Status: commissions.StatusCancelled}}, nil).Once()

	result, err := svc.RecordPayment(context.Background(), PaymentEvent{
		Gateway: GatewaySequra, EventID: "evt-r", SaleRef: "SQ-1001", Kind: PaymentRefund,
	})
	require.NoError(t, err)
	assert.Equal(t, SaleStatusRefunded, result.Sale.Status)
	ledger.AssertExpectations(t)
}

func TestRefundOfPendingSaleCancels(t *testing.T) {
	svc, repo, ledger := newTestService()
	sale := sequraSale()

	repo.On("PaymentExists", mock.Anything, GatewaySequra, "evt-c").Return(false, nil)
	repo.On("GetSaleByExternalRef", mock.Anything, GatewaySequra, "SQ-1001").Return(sale, nil)
	repo.On("SavePayment", mock.Anything, sale, mock.Anything).Return(nil)
	ledger.On("Reverse", mock.Anything, sale.ID, mock.Anything).Return([]commissions.Commission{}, nil)

	result, err := svc.RecordPayment(context.Background(), PaymentEvent{
		Gateway: GatewaySequra, EventID: "evt-c", SaleRef: "SQ-1001", Kind: PaymentRefund,
	})
	require.NoError(t, err)
	assert.Equal(t, SaleStatusCancelled, result.Sale.Status)
}

func TestRecordPaymentOnRefundedSale(t *testing.T) {
	svc, repo, _ := newTestService()
	sale := sequraSale()
	sale.Status = SaleStatusRefunded

	repo.On("PaymentExists", mock.Anything, GatewaySequra, "evt-x").Return(false, nil)
	repo.On("GetSaleByExternalRef", mock.Anything, GatewaySequra, "SQ-1001").Return(sale, nil)
	repo.On("MilestoneRecorded", mock.Anything, sale.ID, 1).Return(false, nil)

	_, err := svc.RecordPayment(context.Background(), PaymentEvent{
		Gateway: GatewaySequra, EventID: "evt-x", SaleRef: "SQ-1001",
		Kind: PaymentMilestone, Milestone: commissions.MilestoneInitial,
	})
	var te *workflows.TransitionError
	assert.ErrorAs(t, err, &te)
	repo.AssertNotCalled(t, "SavePayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordPaymentWithoutAgentsSkipsLedger(t *testing.T) {
	svc, repo, ledger := newTestService()
	sale := &Sale{ID: uuid.New(), Gateway: GatewayHotmart, ExternalRef: ptr("HP9"), TotalAmount: decimal.NewFromInt(97), Status: SaleStatusPending}

	repo.On("PaymentExists", mock.Anything, GatewayHotmart, "h-1").Return(false, nil)
	repo.On("GetSaleByExternalRef", mock.Anything, GatewayHotmart, "HP9").Return(sale, nil)
	repo.On("SavePayment", mock.Anything, sale, mock.Anything).Return(nil)

	result, err := svc.RecordPayment(context.Background(), PaymentEvent{
		Gateway: GatewayHotmart, EventID: "h-1", SaleRef: "HP9", Kind: PaymentFull,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Commissions)
	assert.Equal(t, "97.00", result.Payment.Amount.StringFixed(2))
	ledger.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything)
}
