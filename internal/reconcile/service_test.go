package reconcile

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/khholdings/agentpay-backend/internal/agents"
	"github.com/khholdings/agentpay-backend/internal/commissions"
	"github.com/khholdings/agentpay-backend/internal/gatewayrecords"
	"github.com/khholdings/agentpay-backend/internal/payments"
	"github.com/khholdings/agentpay-backend/pkg/db/models"
	"github.com/khholdings/agentpay-backend/pkg/enums"
	"github.com/khholdings/agentpay-backend/pkg/logger"
	"github.com/khholdings/agentpay-backend/pkg/metrics"
	"github.com/khholdings/agentpay-backend/pkg/outbox"
)

func newTestService(payments *stubPaymentsRepo, agents *stubAgentsRepo, records *stubRecordsRepo, emitter *stubEmitter, disburser *stubDisburser) *Service {
	return NewService(ServiceParams{
		Tx:        &stubTxRunner{},
		Payments:  payments,
		Agents:    agents,
		Records:   records,
		Outbox:    emitter,
		Disburser: disburser,
		Metrics:   metrics.NewWebhookMetrics(nil),
		Logger:    testLogger(),
	})
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func pendingTransaction(orderID string) *models.PaymentTransaction {
	ref := orderID
	return &models.PaymentTransaction{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		PlanID:      uuid.New(),
		ExternalRef: &ref,
		AmountCents: 10000,
		Currency:    "MYR",
		Status:      enums.PaymentStatusPending,
	}
}

func TestHandle_PaidTransition(t *testing.T) {
	txn := pendingTransaction("ORD-1")
	paymentsRepo := &stubPaymentsRepo{txn: txn}
	agent := &models.Agent{ID: txn.UserID, Status: enums.AgentStatusPending}
	agentsRepo := &stubAgentsRepo{agent: agent}
	records := &stubRecordsRepo{}
	emitter := &stubEmitter{}
	disburser := &stubDisburser{}

	svc := newTestService(paymentsRepo, agentsRepo, records, emitter, disburser)
	outcome, err := svc.Handle(context.Background(), WebhookEvent{OrderID: "ORD-1", Status: "paid"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != metrics.OutcomeProcessed {
		t.Fatalf("expected processed outcome, got %s", outcome)
	}
	if txn.Status != enums.PaymentStatusPaid {
		t.Fatalf("expected paid status, got %s", txn.Status)
	}
	if txn.PaidAt == nil {
		t.Fatalf("expected paid_at to be set")
	}
	if agent.AgentCode == nil || *agent.AgentCode != "KH00001" {
		t.Fatalf("expected agent code KH00001, got %v", agent.AgentCode)
	}
	if agent.Status != enums.AgentStatusActive {
		t.Fatalf("expected agent activated")
	}
	if disburser.calls != 1 {
		t.Fatalf("expected disbursement invoked once, got %d", disburser.calls)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType != enums.EventPaymentConfirmed {
		t.Fatalf("expected one payment.confirmed event, got %v", emitter.events)
	}
	if len(records.appended) != 1 {
		t.Fatalf("expected one audit record, got %d", len(records.appended))
	}
}

func TestHandle_DuplicatePaidIsNoOp(t *testing.T) {
	txn := pendingTransaction("ORD-1")
	txn.Status = enums.PaymentStatusPaid
	paidAt := time.Now().Add(-time.Hour)
	txn.PaidAt = &paidAt
	paymentsRepo := &stubPaymentsRepo{txn: txn}
	records := &stubRecordsRepo{}
	disburser := &stubDisburser{}

	svc := newTestService(paymentsRepo, &stubAgentsRepo{}, records, &stubEmitter{}, disburser)
	outcome, err := svc.Handle(context.Background(), WebhookEvent{OrderID: "ORD-1", Status: "paid"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != metrics.OutcomeDuplicate {
		t.Fatalf("expected duplicate outcome, got %s", outcome)
	}
	if disburser.calls != 0 {
		t.Fatalf("expected no disbursement on duplicate")
	}
	if !txn.PaidAt.Equal(paidAt) {
		t.Fatalf("expected paid_at unchanged")
	}
	if len(records.appended) != 1 {
		t.Fatalf("duplicate delivery must still produce one audit record")
	}
}

func TestHandle_RepeatedDeliveryDisbursesOnce(t *testing.T) {
	txn := pendingTransaction("ORD-1")
	paymentsRepo := &stubPaymentsRepo{txn: txn}
	agentsRepo := &stubAgentsRepo{agent: &models.Agent{ID: txn.UserID}}
	disburser := &stubDisburser{}

	svc := newTestService(paymentsRepo, agentsRepo, &stubRecordsRepo{}, &stubEmitter{}, disburser)
	event := WebhookEvent{OrderID: "ORD-1", Status: "paid"}
	for i := 0; i < 3; i++ {
		if _, err := svc.Handle(context.Background(), event); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if disburser.calls != 1 {
		t.Fatalf("expected exactly one disbursement across retries, got %d", disburser.calls)
	}
}

func TestHandle_OrphanMutatesNothing(t *testing.T) {
	paymentsRepo := &stubPaymentsRepo{}
	records := &stubRecordsRepo{}
	disburser := &stubDisburser{}

	svc := newTestService(paymentsRepo, &stubAgentsRepo{}, records, &stubEmitter{}, disburser)
	outcome, err := svc.Handle(context.Background(), WebhookEvent{OrderID: "ORD-UNKNOWN", Status: "paid"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != metrics.OutcomeOrphan {
		t.Fatalf("expected orphan outcome, got %s", outcome)
	}
	if paymentsRepo.markPaidCalls != 0 || paymentsRepo.markFailedCalls != 0 {
		t.Fatalf("orphan event must not mutate the ledger")
	}
	if disburser.calls != 0 {
		t.Fatalf("orphan event must not disburse")
	}
	if len(records.appended) != 1 {
		t.Fatalf("orphan delivery must still produce one audit record")
	}
}

func TestHandle_MalformedEventIsHandled(t *testing.T) {
	records := &stubRecordsRepo{}
	svc := newTestService(&stubPaymentsRepo{}, &stubAgentsRepo{}, records, &stubEmitter{}, &stubDisburser{})

	outcome, err := svc.Handle(context.Background(), WebhookEvent{OrderID: "", Status: "paid"})
	if err != nil {
		t.Fatalf("malformed event must not error: %v", err)
	}
	if outcome != metrics.OutcomeMalformed {
		t.Fatalf("expected malformed outcome, got %s", outcome)
	}
	if len(records.appended) != 1 {
		t.Fatalf("malformed delivery must still produce one audit record")
	}
}

func TestHandle_FailedAfterPaidDoesNotRegress(t *testing.T) {
	txn := pendingTransaction("ORD-1")
	txn.Status = enums.PaymentStatusPaid
	paymentsRepo := &stubPaymentsRepo{txn: txn}

	svc := newTestService(paymentsRepo, &stubAgentsRepo{}, &stubRecordsRepo{}, &stubEmitter{}, &stubDisburser{})
	outcome, err := svc.Handle(context.Background(), WebhookEvent{OrderID: "ORD-1", Status: "failed"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != metrics.OutcomeDuplicate {
		t.Fatalf("expected regression blocked as duplicate, got %s", outcome)
	}
	if txn.Status != enums.PaymentStatusPaid {
		t.Fatalf("paid status must survive a late failed event")
	}
}

func TestHandle_FailedTransition(t *testing.T) {
	txn := pendingTransaction("ORD-1")
	paymentsRepo := &stubPaymentsRepo{txn: txn}
	emitter := &stubEmitter{}
	disburser := &stubDisburser{}

	svc := newTestService(paymentsRepo, &stubAgentsRepo{}, &stubRecordsRepo{}, emitter, disburser)
	outcome, err := svc.Handle(context.Background(), WebhookEvent{OrderID: "ORD-1", Status: "failed"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != metrics.OutcomeProcessed {
		t.Fatalf("expected processed outcome, got %s", outcome)
	}
	if txn.Status != enums.PaymentStatusFailed {
		t.Fatalf("expected failed status, got %s", txn.Status)
	}
	if disburser.calls != 0 {
		t.Fatalf("failed transition must not disburse")
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType != enums.EventPaymentFailed {
		t.Fatalf("expected one payment.failed event")
	}
}

func TestHandle_UnknownStatusIgnored(t *testing.T) {
	txn := pendingTransaction("ORD-1")
	paymentsRepo := &stubPaymentsRepo{txn: txn}

	svc := newTestService(paymentsRepo, &stubAgentsRepo{}, &stubRecordsRepo{}, &stubEmitter{}, &stubDisburser{})
	outcome, err := svc.Handle(context.Background(), WebhookEvent{OrderID: "ORD-1", Status: "created"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != metrics.OutcomeIgnored {
		t.Fatalf("expected ignored outcome, got %s", outcome)
	}
	if txn.Status != enums.PaymentStatusPending {
		t.Fatalf("ignored status must not mutate the transaction")
	}
}

func TestHandle_AuditFailurePropagates(t *testing.T) {
	records := &stubRecordsRepo{appendErr: errors.New("insert failed")}
	svc := newTestService(&stubPaymentsRepo{}, &stubAgentsRepo{}, records, &stubEmitter{}, &stubDisburser{})

	if _, err := svc.Handle(context.Background(), WebhookEvent{OrderID: "ORD-1", Status: "paid"}); err == nil {
		t.Fatalf("storage failure must surface so the gateway retries")
	}
}

func TestHandle_ConcurrentSettleDetectedUnderLock(t *testing.T) {
	txn := pendingTransaction("ORD-1")
	paymentsRepo := &stubPaymentsRepo{txn: txn, settleOnLock: true}
	disburser := &stubDisburser{}

	svc := newTestService(paymentsRepo, &stubAgentsRepo{}, &stubRecordsRepo{}, &stubEmitter{}, disburser)
	outcome, err := svc.Handle(context.Background(), WebhookEvent{OrderID: "ORD-1", Status: "paid"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != metrics.OutcomeDuplicate {
		t.Fatalf("expected duplicate outcome when settled under lock, got %s", outcome)
	}
	if disburser.calls != 0 {
		t.Fatalf("concurrent settle must not disburse twice")
	}
}

func TestHandle_DisbursementFailureDoesNotPropagate(t *testing.T) {
	txn := pendingTransaction("ORD-1")
	paymentsRepo := &stubPaymentsRepo{txn: txn}
	agentsRepo := &stubAgentsRepo{agent: &models.Agent{ID: txn.UserID}}
	disburser := &stubDisburser{err: errors.New("payout ledger down")}

	svc := newTestService(paymentsRepo, agentsRepo, &stubRecordsRepo{}, &stubEmitter{}, disburser)
	outcome, err := svc.Handle(context.Background(), WebhookEvent{OrderID: "ORD-1", Status: "paid"})
	if err != nil {
		t.Fatalf("disbursement failure must not fail the transition: %v", err)
	}
	if outcome != metrics.OutcomeProcessed {
		t.Fatalf("expected processed outcome, got %s", outcome)
	}
	if txn.Status != enums.PaymentStatusPaid {
		t.Fatalf("paid status must survive a disbursement failure")
	}
}

func TestHandle_ExistingAgentCodeNotReassigned(t *testing.T) {
	txn := pendingTransaction("ORD-1")
	code := "KH00042"
	agent := &models.Agent{ID: txn.UserID, AgentCode: &code, Status: enums.AgentStatusActive}
	agentsRepo := &stubAgentsRepo{agent: agent}

	svc := newTestService(&stubPaymentsRepo{txn: txn}, agentsRepo, &stubRecordsRepo{}, &stubEmitter{}, &stubDisburser{})
	if _, err := svc.Handle(context.Background(), WebhookEvent{OrderID: "ORD-1", Status: "paid"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if agentsRepo.seqCalls != 0 {
		t.Fatalf("agent with a code must not draw a new sequence")
	}
	if *agent.AgentCode != "KH00042" {
		t.Fatalf("agent code must be immutable once assigned")
	}
}

type stubTxRunner struct{}

func (s *stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubPaymentsRepo struct {
	txn             *models.PaymentTransaction
	settleOnLock    bool
	markPaidCalls   int
	markFailedCalls int
}

func (s *stubPaymentsRepo) WithTx(tx *gorm.DB) payments.Repository { return s }

func (s *stubPaymentsRepo) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	return nil
}

func (s *stubPaymentsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	return s.txn, nil
}

func (s *stubPaymentsRepo) FindByOrderRef(ctx context.Context, orderID string) (*models.PaymentTransaction, error) {
	if s.txn == nil || s.txn.ExternalRef == nil || *s.txn.ExternalRef != orderID {
		return nil, nil
	}
	copied := *s.txn
	return &copied, nil
}

func (s *stubPaymentsRepo) LockByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	if s.settleOnLock {
		s.txn.Status = enums.PaymentStatusPaid
		s.settleOnLock = false
	}
	copied := *s.txn
	return &copied, nil
}

func (s *stubPaymentsRepo) SetExternalRef(ctx context.Context, id uuid.UUID, externalRef string) error {
	return nil
}

func (s *stubPaymentsRepo) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	s.markPaidCalls++
	s.txn.Status = enums.PaymentStatusPaid
	s.txn.PaidAt = &paidAt
	return nil
}

func (s *stubPaymentsRepo) MarkFailed(ctx context.Context, id uuid.UUID) error {
	s.markFailedCalls++
	s.txn.Status = enums.PaymentStatusFailed
	return nil
}

type stubAgentsRepo struct {
	agent    *models.Agent
	seq      int64
	seqCalls int
}

func (s *stubAgentsRepo) WithTx(tx *gorm.DB) agents.Repository { return s }

func (s *stubAgentsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	if s.agent == nil || s.agent.ID != id {
		return nil, nil
	}
	return s.agent, nil
}

func (s *stubAgentsRepo) FindByCode(ctx context.Context, code string) (*models.Agent, error) {
	return nil, nil
}

func (s *stubAgentsRepo) NextCodeSeq(ctx context.Context) (int64, error) {
	s.seqCalls++
	s.seq++
	return s.seq, nil
}

func (s *stubAgentsRepo) AssignCode(ctx context.Context, agentID uuid.UUID, code string, at time.Time) error {
	s.agent.AgentCode = &code
	s.agent.Status = enums.AgentStatusActive
	s.agent.ActivatedAt = &at
	return nil
}

func (s *stubAgentsRepo) ListWithCodePrefix(ctx context.Context, prefix string) ([]models.Agent, error) {
	return nil, nil
}

func (s *stubAgentsRepo) UpdateCode(ctx context.Context, agentID uuid.UUID, code string) error {
	return nil
}

type stubRecordsRepo struct {
	appended  []*models.GatewayRecord
	appendErr error
}

func (s *stubRecordsRepo) WithTx(tx *gorm.DB) gatewayrecords.Repository { return s }

func (s *stubRecordsRepo) Append(ctx context.Context, record *models.GatewayRecord) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appended = append(s.appended, record)
	return nil
}

func (s *stubRecordsRepo) ListByExternalRef(ctx context.Context, externalRef string) ([]models.GatewayRecord, error) {
	return nil, nil
}

type stubEmitter struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type stubDisburser struct {
	calls int
	err   error
}

func (s *stubDisburser) DisburseForPayment(ctx context.Context, payment *models.PaymentTransaction, purchaser *models.Agent) (*commissions.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &commissions.Result{}, nil
}
