package commissions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists commission records
type Repository interface {
	CreateBatch(ctx context.Context, records []Commission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Commission, error)
	ListBySale(ctx context.Context, saleID uuid.UUID) ([]Commission, error)
	List(ctx context.Context, filter ListFilter) ([]Commission, error)
	ListPendingBefore(ctx context.Context, before time.Time) ([]Commission, error)
	Update(ctx context.Context, record *Commission) error
	ApplyReversal(ctx context.Context, cancelled []Commission, clawbacks []Commission) error
}

// RepositoryImpl handles all database operations for commissions
type RepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new commission repository
func NewRepository(db *gorm.DB) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) CreateBatch(ctx context.Context, records []Commission) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&records).Error
}

func (r *RepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*Commission, error) {
	var c Commission
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *RepositoryImpl) ListBySale(ctx context.Context, saleID uuid.UUID) ([]Commission, error) {
	var out []Commission
	err := r.db.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *RepositoryImpl) List(ctx context.Context, filter ListFilter) ([]Commission, error) {
	query := r.db.WithContext(ctx).Model(&Commission{})

	if filter.SaleID != nil {
		query = query.Where("sale_id = ?", *filter.SaleID)
	}
	if filter.AgentID != "" {
		query = query.Where("agent_id = ?", filter.AgentID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", *filter.To)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var out []Commission
	err := query.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&out).Error
	return out, err
}

func (r *RepositoryImpl) ListPendingBefore(ctx context.Context, before time.Time) ([]Commission, error) {
	var out []Commission
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", StatusPending, before).
		Find(&out).Error
	return out, err
}

func (r *RepositoryImpl) Update(ctx context.Context, record *Commission) error {
	return r.db.WithContext(ctx).Save(record).Error
}

// ApplyReversal cancels and inserts clawbacks in one transaction
func (r *RepositoryImpl) ApplyReversal(ctx context.Context, cancelled []Commission, clawbacks []Commission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range cancelled {
			if err := tx.Save(&cancelled[i]).Error; err != nil {
				return err
			}
		}
		if len(clawbacks) > 0 {
			if err := tx.Create(&clawbacks).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
