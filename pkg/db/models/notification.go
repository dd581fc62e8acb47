package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/khholdings/agentpay-backend/pkg/enums"
)

// Notification stores in-app notification payloads scoped to agents.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AgentID   uuid.UUID              `gorm:"column:agent_id;type:uuid;not null"`
	Type      enums.NotificationType `gorm:"column:type;type:notification_type;not null"`
	Title     string                 `gorm:"column:title;type:text;not null"`
	Message   string                 `gorm:"column:message;type:text;not null"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}
