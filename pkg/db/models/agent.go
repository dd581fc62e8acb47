package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/khholdings/agentpay-backend/pkg/enums"
)

// Agent is the subset of the user entity the payment flow touches.
// AgentCode is assigned exactly once, on the first paid transaction, and is
// immutable afterwards. ReferrerCode points at the referring agent's code.
type Agent struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string            `gorm:"column:email;type:text;not null;uniqueIndex"`
	FullName     string            `gorm:"column:full_name;type:text;not null"`
	AgentCode    *string           `gorm:"column:agent_code;uniqueIndex:ux_agents_agent_code"`
	ReferrerCode *string           `gorm:"column:referrer_code"`
	Status       enums.AgentStatus `gorm:"column:status;type:agent_status;not null;default:'pending'"`
	ActivatedAt  *time.Time        `gorm:"column:activated_at"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
