package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Repository defines the read-side queries behind reporting
type Repository interface {
	PayoutSummary(ctx context.Context, from, to time.Time) ([]PayoutSummaryRow, error)
	PayoutLines(ctx context.Context, from, to time.Time) ([]PayoutLine, error)
	StatusTotals(ctx context.Context) ([]StatusTotal, error)
	SalesByStatus(ctx context.Context) ([]SaleStatusCount, error)
}

// PostgresRepository implements Repository over sqlx
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Payable commissions are approved or paid and not reversed.
const payableWhere = `status IN ('approved', 'paid') AND created_at >= $1 AND created_at < $2`

// PayoutSummary aggregates payable commissions per agent and role
func (r *PostgresRepository) PayoutSummary(ctx context.Context, from, to time.Time) ([]PayoutSummaryRow, error) {
	query := `
		SELECT agent_id, role, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total
		FROM commissions
		WHERE ` + payableWhere + `
		GROUP BY agent_id, role
		ORDER BY agent_id, role`

	rows := []PayoutSummaryRow{}
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to query payout summary: %w", err)
	}
	return rows, nil
}

// PayoutLines lists payable commissions in creation order
func (r *PostgresRepository) PayoutLines(ctx context.Context, from, to time.Time) ([]PayoutLine, error) {
	query := `
		SELECT id, agent_id, role, sale_id, milestone, status, base_amount, amount, created_at
		FROM commissions
		WHERE ` + payableWhere + `
		ORDER BY agent_id, created_at`

	lines := []PayoutLine{}
	if err := r.db.SelectContext(ctx, &lines, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to query payout lines: %w", err)
	}
	return lines, nil
}

func (r *PostgresRepository) StatusTotals(ctx context.Context) ([]StatusTotal, error) {
	query := `
		SELECT status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total
		FROM commissions
		GROUP BY status
		ORDER BY status`

	totals := []StatusTotal{}
	if err := r.db.SelectContext(ctx, &totals, query); err != nil {
		return nil, fmt.Errorf("failed to query commission totals: %w", err)
	}
	return totals, nil
}

func (r *PostgresRepository) SalesByStatus(ctx context.Context) ([]SaleStatusCount, error) {
	query := `
		SELECT status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS amount
		FROM sales
		GROUP BY status
		ORDER BY status`

	counts := []SaleStatusCount{}
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("failed to query sales by status: %w", err)
	}
	return counts, nil
}
