package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/khholdings/agentpay-backend/pkg/db/models"
)

// Repository manages in-app notification rows.
type Repository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByAgentID(ctx context.Context, agentID uuid.UUID, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a notification repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *repository) ListByAgentID(ctx context.Context, agentID uuid.UUID, limit int) ([]models.Notification, error) {
	query := r.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.Notification
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MarkRead(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", time.Now()).Error
}
