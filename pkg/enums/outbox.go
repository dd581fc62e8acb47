package enums

// OutboxEventType names the domain events emitted through the outbox.
type OutboxEventType string

const (
	EventPaymentConfirmed OutboxEventType = "payment.confirmed"
	EventPaymentFailed    OutboxEventType = "payment.failed"
)

// String implements fmt.Stringer.
func (o OutboxEventType) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OutboxEventType.
func (o OutboxEventType) IsValid() bool {
	switch o {
	case EventPaymentConfirmed, EventPaymentFailed:
		return true
	}
	return false
}

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregatePaymentTransaction OutboxAggregateType = "payment_transaction"
)

// String implements fmt.Stringer.
func (o OutboxAggregateType) String() string {
	return string(o)
}
