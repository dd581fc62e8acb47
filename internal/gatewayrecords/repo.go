package gatewayrecords

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/khholdings/agentpay-backend/pkg/db/models"
	"github.com/khholdings/agentpay-backend/pkg/enums"
)

// Repository manages the append-only gateway audit trail. Rows are never
// updated or deleted; redelivered webhooks insert fresh rows on purpose.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, record *models.GatewayRecord) error
	ListByExternalRef(ctx context.Context, externalRef string) ([]models.GatewayRecord, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a gateway-record repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, record *models.GatewayRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) ListByExternalRef(ctx context.Context, externalRef string) ([]models.GatewayRecord, error) {
	var records []models.GatewayRecord
	if err := r.db.WithContext(ctx).
		Where("external_ref = ?", externalRef).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// NewWebhookRecord builds an audit row for an inbound webhook delivery.
func NewWebhookRecord(provider string, externalRef string, payload json.RawMessage) *models.GatewayRecord {
	var ref *string
	if externalRef != "" {
		ref = &externalRef
	}
	return &models.GatewayRecord{
		Provider:    provider,
		Direction:   enums.GatewayDirectionWebhook,
		ExternalRef: ref,
		Payload:     payload,
		StatusCode:  200,
	}
}

// NewRequestRecord builds an audit row for an outbound gateway request.
func NewRequestRecord(provider string, externalRef string, payload json.RawMessage, statusCode int) *models.GatewayRecord {
	var ref *string
	if externalRef != "" {
		ref = &externalRef
	}
	return &models.GatewayRecord{
		Provider:    provider,
		Direction:   enums.GatewayDirectionRequest,
		ExternalRef: ref,
		Payload:     payload,
		StatusCode:  statusCode,
	}
}
