package models

import (
	"time"

	"github.com/google/uuid"
)

// InsurancePlan is a sellable policy product. PriceCents is the annual
// premium; interval pricing is derived from it at checkout.
type InsurancePlan struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"column:name;type:text;not null"`
	Slug        string    `gorm:"column:slug;type:text;not null;uniqueIndex"`
	Description *string   `gorm:"column:description;type:text"`
	PriceCents  int64     `gorm:"column:price_cents;not null"`
	Active      bool      `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
