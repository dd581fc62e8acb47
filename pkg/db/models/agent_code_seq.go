package models

// AgentCodeSeq is the single-row counter behind agent code assignment.
// Bumping it with UPDATE ... RETURNING serializes concurrent first payments
// on the row lock, so two agents can never draw the same sequence number.
type AgentCodeSeq struct {
	ID      int   `gorm:"column:id;primaryKey"`
	LastSeq int64 `gorm:"column:last_seq;not null"`
}

// TableName overrides gorm's pluralization.
func (AgentCodeSeq) TableName() string {
	return "agent_code_seq"
}
