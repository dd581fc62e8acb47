package plans

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/khholdings/agentpay-backend/pkg/db/models"
)

// Repository manages insurance plan rows.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.InsurancePlan, error)
	FindBySlug(ctx context.Context, slug string) (*models.InsurancePlan, error)
	ListActive(ctx context.Context) ([]models.InsurancePlan, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a plan repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.InsurancePlan, error) {
	var plan models.InsurancePlan
	err := r.db.WithContext(ctx).First(&plan, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *repository) FindBySlug(ctx context.Context, slug string) (*models.InsurancePlan, error) {
	var plan models.InsurancePlan
	err := r.db.WithContext(ctx).First(&plan, "slug = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.InsurancePlan, error) {
	var plans []models.InsurancePlan
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}
