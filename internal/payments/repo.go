package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/khholdings/agentpay-backend/pkg/db/models"
	"github.com/khholdings/agentpay-backend/pkg/enums"
)

// Repository manages persistence for payment transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.PaymentTransaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error)
	// FindByOrderRef matches external_ref first and falls back to the
	// order id stashed in the metadata map. Returns (nil, nil) when no
	// transaction matches.
	FindByOrderRef(ctx context.Context, orderID string) (*models.PaymentTransaction, error)
	// LockByID re-reads the row under FOR UPDATE; only valid inside a
	// transaction.
	LockByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error)
	SetExternalRef(ctx context.Context, id uuid.UUID, externalRef string) error
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment-transaction repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.db.WithContext(ctx).First(&txn, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindByOrderRef(ctx context.Context, orderID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("external_ref = ?", orderID).
		Or("meta->>'order_id' = ?", orderID).
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&txn, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) SetExternalRef(ctx context.Context, id uuid.UUID, externalRef string) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ?", id).
		Update("external_ref", externalRef).Error
}

func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":  enums.PaymentStatusPaid,
			"paid_at": paidAt,
		}).Error
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ?", id).
		Update("status", enums.PaymentStatusFailed).Error
}
