package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/khholdings/agentpay-backend/pkg/enums"
)

// PaymentTransaction is the ledger row for one payment attempt. Rows are
// never deleted; status moves pending→paid or pending→failed and stops.
type PaymentTransaction struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	PlanID      uuid.UUID           `gorm:"column:plan_id;type:uuid;not null"`
	ExternalRef *string             `gorm:"column:external_ref;uniqueIndex:ux_payment_transactions_external_ref"`
	AmountCents int64               `gorm:"column:amount_cents;not null"`
	Currency    string              `gorm:"column:currency;type:char(3);not null;default:'MYR'"`
	Status      enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	PaidAt      *time.Time          `gorm:"column:paid_at"`
	Meta        json.RawMessage     `gorm:"column:meta;type:jsonb"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
