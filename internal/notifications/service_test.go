package notifications

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/khholdings/agentpay-backend/pkg/db/models"
	"github.com/khholdings/agentpay-backend/pkg/enums"
	"github.com/khholdings/agentpay-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type recordingRepo struct {
	created []*models.Notification
}

func (r *recordingRepo) Create(ctx context.Context, notification *models.Notification) error {
	r.created = append(r.created, notification)
	return nil
}

func (r *recordingRepo) ListByAgentID(ctx context.Context, agentID uuid.UUID, limit int) ([]models.Notification, error) {
	return nil, nil
}

func (r *recordingRepo) MarkRead(ctx context.Context, id uuid.UUID) error {
	return nil
}

func TestCreatePaymentNotification(t *testing.T) {
	repo := &recordingRepo{}
	svc := NewService(repo, testLogger())

	agentID := uuid.New()
	err := svc.CreatePaymentNotification(context.Background(), agentID, 123456, "MYR", "curlec", uuid.New())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one notification")
	}
	n := repo.created[0]
	if n.AgentID != agentID || n.Type != enums.NotificationTypePayment {
		t.Fatalf("unexpected notification %+v", n)
	}
	if !strings.Contains(n.Message, "MYR 1234.56") {
		t.Fatalf("message must render the amount in major units, got %q", n.Message)
	}
}

func TestCreateCommissionNotification(t *testing.T) {
	repo := &recordingRepo{}
	svc := NewService(repo, testLogger())

	err := svc.CreateCommissionNotification(context.Background(), uuid.New(), 5000, "MYR", 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	n := repo.created[0]
	if n.Type != enums.NotificationTypeCommission {
		t.Fatalf("expected commission notification type")
	}
	if !strings.Contains(n.Message, "level 2") || !strings.Contains(n.Message, "50.00") {
		t.Fatalf("unexpected message %q", n.Message)
	}
}

func TestMajorUnits(t *testing.T) {
	cases := map[int64]string{
		0:      "0.00",
		5:      "0.05",
		100:    "1.00",
		123456: "1234.56",
	}
	for cents, want := range cases {
		if got := MajorUnits(cents); got != want {
			t.Fatalf("%d cents: expected %s, got %s", cents, want, got)
		}
	}
}
