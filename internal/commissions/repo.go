package commissions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/khholdings/agentpay-backend/pkg/db"
	"github.com/khholdings/agentpay-backend/pkg/db/models"
)

// Repository manages commission payout rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Create inserts a payout row. Returns (false, nil) when the
	// (payment_id, level) pair already exists, which makes retried
	// disbursement a no-op.
	Create(ctx context.Context, payout *models.CommissionPayout) (bool, error)
	ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]models.CommissionPayout, error)
	ListByAgentID(ctx context.Context, agentID uuid.UUID, limit int) ([]models.CommissionPayout, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a commission payout repository bound to the provided database.
func NewRepository(gdb *gorm.DB) Repository {
	return &repository{db: gdb}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payout *models.CommissionPayout) (bool, error) {
	err := r.db.WithContext(ctx).Create(payout).Error
	if err != nil {
		if db.IsUniqueViolation(err, "ux_commission_payouts_payment_level") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repository) ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]models.CommissionPayout, error) {
	var payouts []models.CommissionPayout
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("level ASC").
		Find(&payouts).Error; err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *repository) ListByAgentID(ctx context.Context, agentID uuid.UUID, limit int) ([]models.CommissionPayout, error) {
	query := r.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var payouts []models.CommissionPayout
	if err := query.Find(&payouts).Error; err != nil {
		return nil, err
	}
	return payouts, nil
}
