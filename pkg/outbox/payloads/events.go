package payloads

import (
	"time"

	"github.com/google/uuid"
)

// PaymentConfirmedEvent is emitted inside the paid transition's transaction
// and drives downstream notification delivery.
type PaymentConfirmedEvent struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	AgentID     uuid.UUID `json:"agent_id"`
	AgentCode   string    `json:"agent_code,omitempty"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Provider    string    `json:"provider"`
	PaidAt      time.Time `json:"paid_at"`
}

// PaymentFailedEvent records a failed payment attempt for downstream
// consumers.
type PaymentFailedEvent struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	AgentID     uuid.UUID `json:"agent_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Provider    string    `json:"provider"`
	FailedAt    time.Time `json:"failed_at"`
}
