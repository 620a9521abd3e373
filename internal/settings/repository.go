package settings

import (
	"context"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the persistent key-value store behind the resolver
type Repository interface {
	Get(ctx context.Context, key Key) (*Setting, error)
	List(ctx context.Context) ([]Setting, error)
	Upsert(ctx context.Context, setting *Setting) error
}

// RepositoryImpl handles all database operations for settings
type RepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new settings repository
func NewRepository(db *gorm.DB) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

// Get returns the stored row for key, or ErrNotFound
func (r *RepositoryImpl) Get(ctx context.Context, key Key) (*Setting, error) {
	var s Setting
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns every stored row
func (r *RepositoryImpl) List(ctx context.Context) ([]Setting, error) {
	var out []Setting
	if err := r.db.WithContext(ctx).Order("key").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert writes the row, replacing value and description on conflict
func (r *RepositoryImpl) Upsert(ctx context.Context, setting *Setting) error {
	if setting.Value == nil {
		setting.Value = datatypes.JSON("null")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
	}).Create(setting).Error
}
