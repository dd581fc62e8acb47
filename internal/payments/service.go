package payments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/khholdings/agentpay-backend/internal/gatewayrecords"
	"github.com/khholdings/agentpay-backend/internal/plans"
	"github.com/khholdings/agentpay-backend/pkg/curlec"
	"github.com/khholdings/agentpay-backend/pkg/db/models"
	"github.com/khholdings/agentpay-backend/pkg/enums"
	pkgerrors "github.com/khholdings/agentpay-backend/pkg/errors"
	"github.com/khholdings/agentpay-backend/pkg/logger"
)

const (
	defaultCurrency = "MYR"
	receiptPrefix   = "KHI-"
)

// Gateway is the outbound payment gateway surface the checkout flow needs.
type Gateway interface {
	CreatePlan(ctx context.Context, req curlec.PlanRequest) (*curlec.PlanResult, error)
	CreateSubscription(ctx context.Context, req curlec.SubscriptionRequest) (*curlec.SubscriptionResult, error)
	CreateOrder(ctx context.Context, req curlec.OrderRequest) (*curlec.OrderResult, error)
}

// CheckoutResult is the normalized outcome of an order or subscription
// creation handed back to the caller.
type CheckoutResult struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	ExternalID  string    `json:"external_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	CheckoutURL *string   `json:"checkout_url,omitempty"`
}

// ServiceParams wires the checkout service dependencies.
type ServiceParams struct {
	Payments Repository
	Plans    plans.Repository
	Records  gatewayrecords.Repository
	Gateway  Gateway
	Logger   *logger.Logger
}

// Service creates pending payment transactions and opens the matching
// gateway order or subscription. Every outbound request leaves a gateway
// record, success or not.
type Service struct {
	payments Repository
	plans    plans.Repository
	records  gatewayrecords.Repository
	gateway  Gateway
	logg     *logger.Logger
}

// NewService builds a checkout service from its parameters.
func NewService(params ServiceParams) *Service {
	return &Service{
		payments: params.Payments,
		plans:    params.Plans,
		records:  params.Records,
		gateway:  params.Gateway,
		logg:     params.Logger,
	}
}

// CreateOrder opens a one-off gateway order for a plan's annual premium and
// records a pending transaction keyed by the returned order id.
func (s *Service) CreateOrder(ctx context.Context, userID, planID uuid.UUID) (*CheckoutResult, error) {
	plan, err := s.activePlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	txn, err := s.createPending(ctx, userID, plan, plan.PriceCents, map[string]any{
		"plan_slug": plan.Slug,
		"kind":      "order",
	})
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithPaymentID(ctx, txn.ID.String())

	req := curlec.OrderRequest{
		Amount:   txn.AmountCents,
		Currency: txn.Currency,
		Receipt:  receiptPrefix + txn.ID.String(),
		Notes: map[string]string{
			"payment_id": txn.ID.String(),
			"user_id":    userID.String(),
			"plan_id":    plan.ID.String(),
		},
	}
	result, gatewayErr := s.gateway.CreateOrder(ctx, req)

	externalRef := ""
	if result != nil {
		externalRef = result.ID
	}
	if err := s.auditRequest(ctx, externalRef, req, gatewayErr); err != nil {
		return nil, err
	}
	if gatewayErr != nil {
		return nil, gatewayErr
	}

	if err := s.payments.SetExternalRef(ctx, txn.ID, result.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist external ref")
	}

	s.logg.Info(s.logg.WithExternalRef(ctx, result.ID), "gateway order created")
	return &CheckoutResult{
		PaymentID:   txn.ID,
		ExternalID:  result.ID,
		AmountCents: result.Amount,
		Currency:    result.Currency,
		CheckoutURL: result.CheckoutURL,
	}, nil
}

// CreateSubscription registers a gateway billing plan at the interval's
// derived price, opens a subscription against it, and records a pending
// transaction keyed by the subscription id.
func (s *Service) CreateSubscription(ctx context.Context, userID, planID uuid.UUID, interval enums.BillingInterval) (*CheckoutResult, error) {
	plan, err := s.activePlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	amountCents := IntervalAmountCents(plan.PriceCents, interval)
	txn, err := s.createPending(ctx, userID, plan, amountCents, map[string]any{
		"plan_slug": plan.Slug,
		"kind":      "subscription",
		"interval":  interval.String(),
	})
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithPaymentID(ctx, txn.ID.String())

	planReq := curlec.PlanRequest{
		Item: curlec.PlanItem{
			Name:        plan.Name,
			Description: planDescription(plan),
			Amount:      amountCents,
			Currency:    defaultCurrency,
		},
		Period:   interval.GatewayPeriod(),
		Interval: 1,
		Notes: map[string]string{
			"plan_id":   plan.ID.String(),
			"plan_slug": plan.Slug,
		},
	}
	planResult, gatewayErr := s.gateway.CreatePlan(ctx, planReq)
	planRef := ""
	if planResult != nil {
		planRef = planResult.ID
	}
	if err := s.auditRequest(ctx, planRef, planReq, gatewayErr); err != nil {
		return nil, err
	}
	if gatewayErr != nil {
		return nil, gatewayErr
	}

	now := time.Now()
	subReq := curlec.SubscriptionRequest{
		PlanID:         planResult.ID,
		TotalCount:     12 / interval.MonthsPerTerm(),
		Quantity:       1,
		CustomerNotify: 1,
		StartAt:        now.Add(time.Minute).Unix(),
		ExpireBy:       now.AddDate(1, 0, 0).Unix(),
		Notes: map[string]string{
			"payment_id": txn.ID.String(),
			"user_id":    userID.String(),
			"plan_id":    plan.ID.String(),
		},
	}
	subResult, gatewayErr := s.gateway.CreateSubscription(ctx, subReq)
	subRef := ""
	if subResult != nil {
		subRef = subResult.ID
	}
	if err := s.auditRequest(ctx, subRef, subReq, gatewayErr); err != nil {
		return nil, err
	}
	if gatewayErr != nil {
		return nil, gatewayErr
	}

	if err := s.payments.SetExternalRef(ctx, txn.ID, subResult.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist external ref")
	}

	s.logg.Info(s.logg.WithExternalRef(ctx, subResult.ID), "gateway subscription created")
	return &CheckoutResult{
		PaymentID:   txn.ID,
		ExternalID:  subResult.ID,
		AmountCents: amountCents,
		Currency:    defaultCurrency,
	}, nil
}

func (s *Service) activePlan(ctx context.Context, planID uuid.UUID) (*models.InsurancePlan, error) {
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan")
	}
	if plan == nil || !plan.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	return plan, nil
}

func (s *Service) createPending(ctx context.Context, userID uuid.UUID, plan *models.InsurancePlan, amountCents int64, meta map[string]any) (*models.PaymentTransaction, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode payment meta")
	}
	txn := &models.PaymentTransaction{
		UserID:      userID,
		PlanID:      plan.ID,
		AmountCents: amountCents,
		Currency:    defaultCurrency,
		Status:      enums.PaymentStatusPending,
		Meta:        metaJSON,
	}
	if err := s.payments.Create(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payment transaction")
	}
	return txn, nil
}

// auditRequest appends the gateway record for an outbound call. The row is
// written on failure too; only the audit write itself aborts the flow.
func (s *Service) auditRequest(ctx context.Context, externalRef string, payload any, gatewayErr error) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway payload")
	}
	statusCode := 200
	if gatewayErr != nil {
		statusCode = 502
	}
	record := gatewayrecords.NewRequestRecord(curlec.ProviderName, externalRef, raw, statusCode)
	if err := s.records.Append(ctx, record); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append gateway request record")
	}
	return nil
}

func planDescription(plan *models.InsurancePlan) string {
	if plan.Description != nil && *plan.Description != "" {
		return *plan.Description
	}
	return plan.Name
}

// IntervalAmountCents derives the per-term price from the plan's annual
// premium, rounding fractional cents to the nearest whole cent.
func IntervalAmountCents(annualCents int64, interval enums.BillingInterval) int64 {
	if interval == enums.BillingIntervalAnnually {
		return annualCents
	}
	annual := decimal.NewFromInt(annualCents)
	months := decimal.NewFromInt(int64(interval.MonthsPerTerm()))
	return annual.Mul(months).Div(decimal.NewFromInt(12)).Round(0).IntPart()
}
