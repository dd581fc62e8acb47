package notifications

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/khholdings/agentpay-backend/internal/commissions"
	"github.com/khholdings/agentpay-backend/pkg/db/models"
	"github.com/khholdings/agentpay-backend/pkg/enums"
	"github.com/khholdings/agentpay-backend/pkg/outbox/payloads"
)

type stubPayoutsRepo struct {
	payouts []models.CommissionPayout
}

func (s *stubPayoutsRepo) WithTx(tx *gorm.DB) commissions.Repository { return s }

func (s *stubPayoutsRepo) Create(ctx context.Context, payout *models.CommissionPayout) (bool, error) {
	return false, nil
}

func (s *stubPayoutsRepo) ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]models.CommissionPayout, error) {
	return s.payouts, nil
}

func (s *stubPayoutsRepo) ListByAgentID(ctx context.Context, agentID uuid.UUID, limit int) ([]models.CommissionPayout, error) {
	return nil, nil
}

func TestHandlePayload_NotifiesPurchaserAndUpline(t *testing.T) {
	repo := &recordingRepo{}
	uplineA := uuid.New()
	uplineB := uuid.New()
	paymentID := uuid.New()
	payouts := &stubPayoutsRepo{payouts: []models.CommissionPayout{
		{PaymentID: paymentID, Level: 1, AgentID: uplineA, AmountCents: 1000},
		{PaymentID: paymentID, Level: 2, AgentID: uplineB, AmountCents: 500},
	}}
	consumer := &Consumer{
		service: NewService(repo, testLogger()),
		payouts: payouts,
		logg:    testLogger(),
	}

	payload := payloads.PaymentConfirmedEvent{
		PaymentID:   paymentID,
		AgentID:     uuid.New(),
		AmountCents: 10_000,
		Currency:    "MYR",
		Provider:    "curlec",
	}
	if err := consumer.handlePayload(context.Background(), payload); err != nil {
		t.Fatalf("handle payload: %v", err)
	}
	if len(repo.created) != 3 {
		t.Fatalf("expected purchaser plus two upline notifications, got %d", len(repo.created))
	}
	if repo.created[0].Type != enums.NotificationTypePayment || repo.created[0].AgentID != payload.AgentID {
		t.Fatalf("first notification must go to the purchaser")
	}
	if repo.created[1].Type != enums.NotificationTypeCommission || repo.created[1].AgentID != uplineA {
		t.Fatalf("second notification must go to the level 1 upline")
	}
	if repo.created[2].AgentID != uplineB {
		t.Fatalf("third notification must go to the level 2 upline")
	}
}

func TestHandlePayload_MissingAgentID(t *testing.T) {
	consumer := &Consumer{
		service: NewService(&recordingRepo{}, testLogger()),
		payouts: &stubPayoutsRepo{},
		logg:    testLogger(),
	}
	err := consumer.handlePayload(context.Background(), payloads.PaymentConfirmedEvent{PaymentID: uuid.New()})
	if err == nil {
		t.Fatalf("expected error for missing agent id")
	}
}
