package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/khholdings/agentpay-backend/pkg/db/models"
	"github.com/khholdings/agentpay-backend/pkg/enums"
	"github.com/khholdings/agentpay-backend/pkg/logger"
)

// Service writes agent-facing notifications. Amounts arrive in cents and are
// rendered in major units.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds a notification service.
func NewService(repo Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// CreatePaymentNotification tells an agent their payment was confirmed.
func (s *Service) CreatePaymentNotification(ctx context.Context, agentID uuid.UUID, amountCents int64, currency, provider string, paymentID uuid.UUID) error {
	notification := &models.Notification{
		AgentID: agentID,
		Type:    enums.NotificationTypePayment,
		Title:   "Payment confirmed",
		Message: fmt.Sprintf("Your payment of %s %s via %s has been confirmed.",
			currency, MajorUnits(amountCents), provider),
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"agent_id":   agentID.String(),
		"payment_id": paymentID.String(),
	})
	s.logg.Info(logCtx, "payment notification created")
	return nil
}

// CreateCommissionNotification tells an upline agent a payout was recorded.
func (s *Service) CreateCommissionNotification(ctx context.Context, agentID uuid.UUID, amountCents int64, currency string, level int) error {
	notification := &models.Notification{
		AgentID: agentID,
		Type:    enums.NotificationTypeCommission,
		Title:   "Commission earned",
		Message: fmt.Sprintf("You earned a level %d commission of %s %s.",
			level, currency, MajorUnits(amountCents)),
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return err
	}
	logCtx := s.logg.WithAgentID(ctx, agentID.String())
	s.logg.Info(logCtx, "commission notification created")
	return nil
}

// MajorUnits renders a cent amount as a two-decimal major-unit string.
func MajorUnits(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}
