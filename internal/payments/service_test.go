package payments

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/khholdings/agentpay-backend/internal/gatewayrecords"
	"github.com/khholdings/agentpay-backend/internal/plans"
	"github.com/khholdings/agentpay-backend/pkg/curlec"
	"github.com/khholdings/agentpay-backend/pkg/db/models"
	"github.com/khholdings/agentpay-backend/pkg/enums"
	pkgerrors "github.com/khholdings/agentpay-backend/pkg/errors"
	"github.com/khholdings/agentpay-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func activePlan() *models.InsurancePlan {
	return &models.InsurancePlan{
		ID:         uuid.New(),
		Name:       "Family Takaful",
		Slug:       "family-takaful",
		PriceCents: 120_000,
		Active:     true,
	}
}

func newCheckoutService(plan *models.InsurancePlan, gateway *stubGateway) (*Service, *recordingPaymentsRepo, *recordingRecordsRepo) {
	paymentsRepo := &recordingPaymentsRepo{}
	recordsRepo := &recordingRecordsRepo{}
	svc := NewService(ServiceParams{
		Payments: paymentsRepo,
		Plans:    &stubPlansRepo{plan: plan},
		Records:  recordsRepo,
		Gateway:  gateway,
		Logger:   testLogger(),
	})
	return svc, paymentsRepo, recordsRepo
}

func TestCreateOrder(t *testing.T) {
	plan := activePlan()
	checkoutURL := "https://checkout.example/o/1"
	gateway := &stubGateway{
		order: &curlec.OrderResult{
			ID:          "order_123",
			Amount:      plan.PriceCents,
			Currency:    "MYR",
			CheckoutURL: &checkoutURL,
		},
	}
	svc, paymentsRepo, recordsRepo := newCheckoutService(plan, gateway)

	userID := uuid.New()
	result, err := svc.CreateOrder(context.Background(), userID, plan.ID)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if result.ExternalID != "order_123" {
		t.Fatalf("unexpected external id %s", result.ExternalID)
	}
	if result.AmountCents != plan.PriceCents {
		t.Fatalf("order must charge the annual premium, got %d", result.AmountCents)
	}
	if len(paymentsRepo.created) != 1 {
		t.Fatalf("expected one pending transaction")
	}
	txn := paymentsRepo.created[0]
	if txn.Status != enums.PaymentStatusPending {
		t.Fatalf("new transaction must start pending")
	}
	if paymentsRepo.externalRefs[txn.ID] != "order_123" {
		t.Fatalf("expected external ref persisted on the transaction")
	}
	if len(recordsRepo.appended) != 1 || recordsRepo.appended[0].StatusCode != 200 {
		t.Fatalf("expected one successful request record")
	}
	if gateway.orderReq.Receipt != "KHI-"+txn.ID.String() {
		t.Fatalf("unexpected receipt %s", gateway.orderReq.Receipt)
	}
}

func TestCreateOrder_GatewayFailureStillAudited(t *testing.T) {
	plan := activePlan()
	gateway := &stubGateway{orderErr: errors.New("gateway timeout")}
	svc, paymentsRepo, recordsRepo := newCheckoutService(plan, gateway)

	if _, err := svc.CreateOrder(context.Background(), uuid.New(), plan.ID); err == nil {
		t.Fatalf("expected gateway failure to surface")
	}
	if len(recordsRepo.appended) != 1 || recordsRepo.appended[0].StatusCode != 502 {
		t.Fatalf("failed gateway call must still leave a 502 request record")
	}
	if len(paymentsRepo.externalRefs) != 0 {
		t.Fatalf("no external ref must be written on gateway failure")
	}
}

func TestCreateOrder_InactivePlanRejected(t *testing.T) {
	plan := activePlan()
	plan.Active = false
	svc, paymentsRepo, _ := newCheckoutService(plan, &stubGateway{})

	_, err := svc.CreateOrder(context.Background(), uuid.New(), plan.ID)
	if err == nil {
		t.Fatalf("inactive plan must be rejected")
	}
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if len(paymentsRepo.created) != 0 {
		t.Fatalf("no transaction must be created for an inactive plan")
	}
}

func TestCreateSubscription(t *testing.T) {
	plan := activePlan()
	gateway := &stubGateway{
		plan: &curlec.PlanResult{ID: "plan_abc", Status: "active"},
		sub:  &curlec.SubscriptionResult{ID: "sub_xyz", PlanID: "plan_abc", Status: "created"},
	}
	svc, paymentsRepo, recordsRepo := newCheckoutService(plan, gateway)

	result, err := svc.CreateSubscription(context.Background(), uuid.New(), plan.ID, enums.BillingIntervalMonthly)
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if result.ExternalID != "sub_xyz" {
		t.Fatalf("unexpected external id %s", result.ExternalID)
	}
	if result.AmountCents != 10_000 {
		t.Fatalf("monthly term on a 120000-cent annual premium must be 10000, got %d", result.AmountCents)
	}
	if gateway.subReq.PlanID != "plan_abc" {
		t.Fatalf("subscription must target the registered gateway plan")
	}
	if gateway.subReq.TotalCount != 12 {
		t.Fatalf("monthly cadence runs 12 terms per year, got %d", gateway.subReq.TotalCount)
	}
	if len(recordsRepo.appended) != 2 {
		t.Fatalf("expected request records for plan and subscription calls, got %d", len(recordsRepo.appended))
	}
	txn := paymentsRepo.created[0]
	if paymentsRepo.externalRefs[txn.ID] != "sub_xyz" {
		t.Fatalf("expected subscription id persisted as external ref")
	}
}

func TestCreateSubscription_SubscriptionFailureAudited(t *testing.T) {
	plan := activePlan()
	gateway := &stubGateway{
		plan:   &curlec.PlanResult{ID: "plan_abc"},
		subErr: errors.New("gateway rejected subscription"),
	}
	svc, _, recordsRepo := newCheckoutService(plan, gateway)

	if _, err := svc.CreateSubscription(context.Background(), uuid.New(), plan.ID, enums.BillingIntervalQuarterly); err == nil {
		t.Fatalf("expected subscription failure to surface")
	}
	if len(recordsRepo.appended) != 2 {
		t.Fatalf("both gateway calls must be audited, got %d records", len(recordsRepo.appended))
	}
	if recordsRepo.appended[1].StatusCode != 502 {
		t.Fatalf("failed subscription call must be recorded with 502")
	}
}

func TestIntervalAmountCents(t *testing.T) {
	cases := []struct {
		interval enums.BillingInterval
		annual   int64
		want     int64
	}{
		{enums.BillingIntervalAnnually, 120_000, 120_000},
		{enums.BillingIntervalSemiAnnually, 120_000, 60_000},
		{enums.BillingIntervalQuarterly, 120_000, 30_000},
		{enums.BillingIntervalMonthly, 120_000, 10_000},
		// 99999/12 = 8333.25, rounds to the nearest cent
		{enums.BillingIntervalMonthly, 99_999, 8_333},
		{enums.BillingIntervalQuarterly, 99_999, 25_000},
	}
	for _, tc := range cases {
		if got := IntervalAmountCents(tc.annual, tc.interval); got != tc.want {
			t.Fatalf("%s of %d: expected %d, got %d", tc.interval, tc.annual, tc.want, got)
		}
	}
}

type stubGateway struct {
	plan     *curlec.PlanResult
	planErr  error
	sub      *curlec.SubscriptionResult
	subErr   error
	order    *curlec.OrderResult
	orderErr error

	planReq  curlec.PlanRequest
	subReq   curlec.SubscriptionRequest
	orderReq curlec.OrderRequest
}

func (s *stubGateway) CreatePlan(ctx context.Context, req curlec.PlanRequest) (*curlec.PlanResult, error) {
	s.planReq = req
	return s.plan, s.planErr
}

func (s *stubGateway) CreateSubscription(ctx context.Context, req curlec.SubscriptionRequest) (*curlec.SubscriptionResult, error) {
	s.subReq = req
	return s.sub, s.subErr
}

func (s *stubGateway) CreateOrder(ctx context.Context, req curlec.OrderRequest) (*curlec.OrderResult, error) {
	s.orderReq = req
	return s.order, s.orderErr
}

type stubPlansRepo struct {
	plan *models.InsurancePlan
}

func (s *stubPlansRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.InsurancePlan, error) {
	if s.plan == nil || s.plan.ID != id {
		return nil, nil
	}
	return s.plan, nil
}

func (s *stubPlansRepo) FindBySlug(ctx context.Context, slug string) (*models.InsurancePlan, error) {
	return nil, nil
}

func (s *stubPlansRepo) ListActive(ctx context.Context) ([]models.InsurancePlan, error) {
	return nil, nil
}

var _ plans.Repository = (*stubPlansRepo)(nil)

type recordingPaymentsRepo struct {
	created      []*models.PaymentTransaction
	externalRefs map[uuid.UUID]string
}

func (r *recordingPaymentsRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *recordingPaymentsRepo) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	txn.ID = uuid.New()
	r.created = append(r.created, txn)
	return nil
}

func (r *recordingPaymentsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	return nil, nil
}

func (r *recordingPaymentsRepo) FindByOrderRef(ctx context.Context, orderID string) (*models.PaymentTransaction, error) {
	return nil, nil
}

func (r *recordingPaymentsRepo) LockByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	return nil, nil
}

func (r *recordingPaymentsRepo) SetExternalRef(ctx context.Context, id uuid.UUID, externalRef string) error {
	if r.externalRefs == nil {
		r.externalRefs = map[uuid.UUID]string{}
	}
	r.externalRefs[id] = externalRef
	return nil
}

func (r *recordingPaymentsRepo) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	return nil
}

func (r *recordingPaymentsRepo) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return nil
}

type recordingRecordsRepo struct {
	appended []*models.GatewayRecord
}

func (r *recordingRecordsRepo) WithTx(tx *gorm.DB) gatewayrecords.Repository { return r }

func (r *recordingRecordsRepo) Append(ctx context.Context, record *models.GatewayRecord) error {
	r.appended = append(r.appended, record)
	return nil
}

func (r *recordingRecordsRepo) ListByExternalRef(ctx context.Context, externalRef string) ([]models.GatewayRecord, error) {
	return nil, nil
}
