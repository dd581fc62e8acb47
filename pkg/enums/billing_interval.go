package enums

import "fmt"

// BillingInterval is the policy payment cadence offered at checkout.
type BillingInterval string

const (
	BillingIntervalMonthly      BillingInterval = "monthly"
	BillingIntervalQuarterly    BillingInterval = "quarterly"
	BillingIntervalSemiAnnually BillingInterval = "semi_annually"
	BillingIntervalAnnually     BillingInterval = "annually"
)

var validBillingIntervals = []BillingInterval{
	BillingIntervalMonthly,
	BillingIntervalQuarterly,
	BillingIntervalSemiAnnually,
	BillingIntervalAnnually,
}

// String implements fmt.Stringer.
func (b BillingInterval) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BillingInterval.
func (b BillingInterval) IsValid() bool {
	for _, candidate := range validBillingIntervals {
		if candidate == b {
			return true
		}
	}
	return false
}

// GatewayPeriod maps the interval onto the period vocabulary the gateway
// expects on plan creation.
func (b BillingInterval) GatewayPeriod() string {
	switch b {
	case BillingIntervalQuarterly:
		return "quarterly"
	case BillingIntervalSemiAnnually:
		return "half_yearly"
	case BillingIntervalAnnually:
		return "yearly"
	default:
		return "monthly"
	}
}

// MonthsPerTerm returns how many monthly price units one term covers.
func (b BillingInterval) MonthsPerTerm() int {
	switch b {
	case BillingIntervalQuarterly:
		return 3
	case BillingIntervalSemiAnnually:
		return 6
	case BillingIntervalAnnually:
		return 12
	default:
		return 1
	}
}

// ParseBillingInterval converts raw input into a BillingInterval.
func ParseBillingInterval(value string) (BillingInterval, error) {
	for _, candidate := range validBillingIntervals {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid billing interval %q", value)
}
