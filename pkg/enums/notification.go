package enums

// NotificationType classifies in-app notifications delivered to agents.
type NotificationType string

const (
	NotificationTypePayment    NotificationType = "payment"
	NotificationTypeCommission NotificationType = "commission"
)

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	switch n {
	case NotificationTypePayment, NotificationTypeCommission:
		return true
	}
	return false
}
