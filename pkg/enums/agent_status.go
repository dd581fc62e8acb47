package enums

// AgentStatus tracks whether an agent has been activated by a paid policy.
type AgentStatus string

const (
	AgentStatusPending   AgentStatus = "pending"
	AgentStatusActive    AgentStatus = "active"
	AgentStatusSuspended AgentStatus = "suspended"
)

// String implements fmt.Stringer.
func (a AgentStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AgentStatus.
func (a AgentStatus) IsValid() bool {
	switch a {
	case AgentStatusPending, AgentStatusActive, AgentStatusSuspended:
		return true
	}
	return false
}
