package enums

import "fmt"

// GatewayDirection distinguishes outbound requests from inbound webhooks in
// the gateway audit trail.
type GatewayDirection string

const (
	GatewayDirectionRequest GatewayDirection = "request"
	GatewayDirectionWebhook GatewayDirection = "webhook"
)

var validGatewayDirections = []GatewayDirection{
	GatewayDirectionRequest,
	GatewayDirectionWebhook,
}

// String implements fmt.Stringer.
func (g GatewayDirection) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GatewayDirection.
func (g GatewayDirection) IsValid() bool {
	for _, candidate := range validGatewayDirections {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGatewayDirection converts raw input into a GatewayDirection.
func ParseGatewayDirection(value string) (GatewayDirection, error) {
	for _, candidate := range validGatewayDirections {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gateway direction %q", value)
}
