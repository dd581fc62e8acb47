package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/khholdings/agentpay-backend/pkg/enums"
)

// GatewayRecord is one immutable audit entry for a gateway interaction.
// Duplicates are intentional: a redelivered webhook gets its own row.
type GatewayRecord struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Provider    string                 `gorm:"column:provider;type:text;not null"`
	Direction   enums.GatewayDirection `gorm:"column:direction;type:gateway_direction;not null"`
	ExternalRef *string                `gorm:"column:external_ref"`
	Payload     json.RawMessage        `gorm:"column:payload;type:jsonb;not null"`
	StatusCode  int                    `gorm:"column:status_code;not null"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
}
