package agents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/khholdings/agentpay-backend/pkg/db/models"
	"github.com/khholdings/agentpay-backend/pkg/enums"
)

// CodePrefix is the marker every assigned agent code carries.
const CodePrefix = "KH"

// FormatCode renders a sequence number as an agent code, e.g. 7 -> "KH00007".
func FormatCode(seq int64) string {
	return fmt.Sprintf("%s%05d", CodePrefix, seq)
}

// Repository manages agent rows and the agent-code counter.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Agent, error)
	// FindByCode returns (nil, nil) when no agent carries the code.
	FindByCode(ctx context.Context, code string) (*models.Agent, error)
	// NextCodeSeq bumps the single-row counter and returns the new value.
	// The row lock taken by UPDATE serializes concurrent callers.
	NextCodeSeq(ctx context.Context) (int64, error)
	// AssignCode sets the agent's code, activates the account, and stamps
	// activated_at. Only valid while the agent has no code yet.
	AssignCode(ctx context.Context, agentID uuid.UUID, code string, at time.Time) error
	// ListWithCodePrefix returns agents whose code starts with the prefix,
	// ordered by code for deterministic recoding.
	ListWithCodePrefix(ctx context.Context, prefix string) ([]models.Agent, error)
	UpdateCode(ctx context.Context, agentID uuid.UUID, code string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an agent repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.WithContext(ctx).First(&agent, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.WithContext(ctx).First(&agent, "agent_code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *repository) NextCodeSeq(ctx context.Context) (int64, error) {
	var next int64
	err := r.db.WithContext(ctx).
		Raw("UPDATE agent_code_seq SET last_seq = last_seq + 1 WHERE id = 1 RETURNING last_seq").
		Scan(&next).Error
	if err != nil {
		return 0, err
	}
	if next == 0 {
		return 0, errors.New("agent_code_seq row missing")
	}
	return next, nil
}

func (r *repository) AssignCode(ctx context.Context, agentID uuid.UUID, code string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Agent{}).
		Where("id = ? AND agent_code IS NULL", agentID).
		Updates(map[string]any{
			"agent_code":   code,
			"status":       enums.AgentStatusActive,
			"activated_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("agent %s already has a code", agentID)
	}
	return nil
}

func (r *repository) ListWithCodePrefix(ctx context.Context, prefix string) ([]models.Agent, error) {
	var agents []models.Agent
	if err := r.db.WithContext(ctx).
		Where("agent_code LIKE ?", prefix+"%").
		Order("agent_code ASC").
		Find(&agents).Error; err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *repository) UpdateCode(ctx context.Context, agentID uuid.UUID, code string) error {
	return r.db.WithContext(ctx).
		Model(&models.Agent{}).
		Where("id = ?", agentID).
		Update("agent_code", code).Error
}
