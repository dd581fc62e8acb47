package models

import (
	"time"

	"github.com/google/uuid"
)

// CommissionPayout is one upline payout produced by a paid transaction.
// The (payment_id, level) unique index makes disbursement idempotent.
type CommissionPayout struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID   uuid.UUID `gorm:"column:payment_id;type:uuid;not null;uniqueIndex:ux_commission_payouts_payment_level"`
	Level       int       `gorm:"column:level;not null;uniqueIndex:ux_commission_payouts_payment_level"`
	AgentID     uuid.UUID `gorm:"column:agent_id;type:uuid;not null"`
	AmountCents int64     `gorm:"column:amount_cents;not null"`
	RateBps     int       `gorm:"column:rate_bps;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
