package sales

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists sales and their payments
type Repository interface {
	CreateSale(ctx context.Context, sale *Sale) error
	GetSale(ctx context.Context, id uuid.UUID) (*Sale, error)
	GetSaleByExternalRef(ctx context.Context, gateway Gateway, ref string) (*Sale, error)
	ListSales(ctx context.Context, filter ListFilter) ([]Sale, error)
	PaymentExists(ctx context.Context, gateway Gateway, eventID string) (bool, error)
	MilestoneRecorded(ctx context.Context, saleID uuid.UUID, milestone int) (bool, error)
	SavePayment(ctx context.Context, sale *Sale, payment *Payment) error
}

// RepositoryImpl handles all database operations for sales
type RepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new sales repository
func NewRepository(db *gorm.DB) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) CreateSale(ctx context.Context, sale *Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

// GetSale loads a sale with its payments
func (r *RepositoryImpl) GetSale(ctx context.Context, id uuid.UUID) (*Sale, error) {
	var sale Sale
	err := r.db.WithContext(ctx).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("received_at ASC") }).
		First(&sale, "id = ?", id).Error
	return found(&sale, err)
}

func (r *RepositoryImpl) GetSaleByExternalRef(ctx context.Context, gateway Gateway, ref string) (*Sale, error) {
	var sale Sale
	err := r.db.WithContext(ctx).
		Where("gateway = ? AND external_ref = ?", gateway, ref).
		First(&sale).Error
	return found(&sale, err)
}

func (r *RepositoryImpl) ListSales(ctx context.Context, filter ListFilter) ([]Sale, error) {
	query := r.db.WithContext(ctx).Model(&Sale{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Gateway != "" {
		query = query.Where("gateway = ?", filter.Gateway)
	}
	if filter.AgentID != "" {
		query = query.Where("coach_id = ? OR closer_id = ? OR setter_id = ?", filter.AgentID, filter.AgentID, filter.AgentID)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var out []Sale
	err := query.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&out).Error
	return out, err
}

func (r *RepositoryImpl) PaymentExists(ctx context.Context, gateway Gateway, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Payment{}).
		Where("gateway = ? AND external_event_id = ?", gateway, eventID).
		Count(&count).Error
	return count > 0, err
}

// MilestoneRecorded reports whether a payment for this milestone of the sale exists
func (r *RepositoryImpl) MilestoneRecorded(ctx context.Context, saleID uuid.UUID, milestone int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Payment{}).
		Where("sale_id = ? AND kind = ? AND milestone = ?", saleID, PaymentMilestone, milestone).
		Count(&count).Error
	return count > 0, err
}

// SavePayment inserts the payment and stores the sale's new status atomically.
// A unique violation on the event id or the sale milestone surfaces as
// ErrDuplicateEvent.
func (r *RepositoryImpl) SavePayment(ctx context.Context, sale *Sale, payment *Payment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(payment).Error; err != nil {
			return err
		}
		return tx.Model(sale).Select("status", "paid_at", "updated_at").Updates(sale).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEvent
	}
	return err
}

func found(sale *Sale, err error) (*Sale, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, err
	}
	return sale, nil
}
