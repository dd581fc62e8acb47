package reconcile

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/khholdings/agentpay-backend/internal/agents"
	"github.com/khholdings/agentpay-backend/internal/commissions"
	"github.com/khholdings/agentpay-backend/internal/gatewayrecords"
	"github.com/khholdings/agentpay-backend/internal/payments"
	"github.com/khholdings/agentpay-backend/pkg/curlec"
	"github.com/khholdings/agentpay-backend/pkg/db/models"
	"github.com/khholdings/agentpay-backend/pkg/enums"
	pkgerrors "github.com/khholdings/agentpay-backend/pkg/errors"
	"github.com/khholdings/agentpay-backend/pkg/logger"
	"github.com/khholdings/agentpay-backend/pkg/metrics"
	"github.com/khholdings/agentpay-backend/pkg/outbox"
	"github.com/khholdings/agentpay-backend/pkg/outbox/payloads"
)

// WebhookEvent is the parsed inbound gateway notification.
type WebhookEvent struct {
	OrderID string
	Status  string
	Payload json.RawMessage
}

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Disburser is the commission collaborator invoked after a paid commit.
type Disburser interface {
	DisburseForPayment(ctx context.Context, payment *models.PaymentTransaction, purchaser *models.Agent) (*commissions.Result, error)
}

// ServiceParams wires the reconciliation engine dependencies.
type ServiceParams struct {
	Tx        TxRunner
	Payments  payments.Repository
	Agents    agents.Repository
	Records   gatewayrecords.Repository
	Outbox    outbox.Emitter
	Disburser Disburser
	Metrics   *metrics.WebhookMetrics
	Logger    *logger.Logger
}

// Service reconciles inbound gateway webhooks against the payment ledger.
//
// Malformed, orphan, and duplicate deliveries are handled outcomes: they are
// logged and counted but return nil, because the gateway retries on any
// non-success response and those conditions are not transient. Only storage
// failures propagate so the gateway redelivers.
type Service struct {
	tx        TxRunner
	payments  payments.Repository
	agents    agents.Repository
	records   gatewayrecords.Repository
	outbox    outbox.Emitter
	disburser Disburser
	metrics   *metrics.WebhookMetrics
	logg      *logger.Logger
}

// NewService builds the reconciliation engine from its parameters.
func NewService(params ServiceParams) *Service {
	return &Service{
		tx:        params.Tx,
		payments:  params.Payments,
		agents:    params.Agents,
		records:   params.Records,
		outbox:    params.Outbox,
		disburser: params.Disburser,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}
}

// Handle applies one webhook delivery to the ledger. It is safe to call
// concurrently and repeatedly for the same logical event.
func (s *Service) Handle(ctx context.Context, event WebhookEvent) (outcome string, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveDuration(curlec.ProviderName, time.Since(start))
		s.metrics.IncOutcome(curlec.ProviderName, outcome)
	}()

	ctx = s.logg.WithExternalRef(ctx, event.OrderID)

	// Audit trail first: every delivery gets exactly one row, even when the
	// event turns out malformed, orphaned, or duplicate.
	record := gatewayrecords.NewWebhookRecord(curlec.ProviderName, event.OrderID, auditPayload(event))
	if err := s.records.Append(ctx, record); err != nil {
		return metrics.OutcomeError, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append webhook audit record")
	}

	if event.OrderID == "" || event.Status == "" {
		s.logg.Warn(ctx, "webhook missing order id or status")
		return metrics.OutcomeMalformed, nil
	}

	implied, meaningful := impliedTerminalStatus(event.Status)
	if !meaningful {
		logCtx := s.logg.WithField(ctx, "status", event.Status)
		s.logg.Info(logCtx, "webhook status carries no transition, ignoring")
		return metrics.OutcomeIgnored, nil
	}

	txn, err := s.payments.FindByOrderRef(ctx, event.OrderID)
	if err != nil {
		return metrics.OutcomeError, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve payment transaction")
	}
	if txn == nil {
		s.logg.Warn(ctx, "webhook references unknown order, nothing to reconcile")
		return metrics.OutcomeOrphan, nil
	}
	ctx = s.logg.WithPaymentID(ctx, txn.ID.String())

	if txn.Status == implied {
		s.logg.Info(ctx, "transaction already in target terminal state, duplicate delivery")
		return metrics.OutcomeDuplicate, nil
	}
	if txn.Status.IsTerminal() {
		// A late failed after paid (or paid after failed) must not overwrite
		// the settled state. Policy, not an accident.
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"current_status":  txn.Status,
			"incoming_status": event.Status,
		})
		s.logg.Warn(logCtx, "terminal state regression blocked")
		return metrics.OutcomeDuplicate, nil
	}

	switch implied {
	case enums.PaymentStatusPaid:
		return s.applyPaid(ctx, txn)
	default:
		return s.applyFailed(ctx, txn)
	}
}

// RecordRejected writes the audit row for a delivery that failed signature
// verification. No other state is touched.
func (s *Service) RecordRejected(ctx context.Context, event WebhookEvent) error {
	ctx = s.logg.WithExternalRef(ctx, event.OrderID)
	s.logg.Warn(ctx, "webhook signature rejected")
	s.metrics.IncOutcome(curlec.ProviderName, metrics.OutcomeRejected)
	record := gatewayrecords.NewWebhookRecord(curlec.ProviderName, event.OrderID, auditPayload(event))
	record.StatusCode = 401
	return s.records.Append(ctx, record)
}

// applyPaid runs the paid transition as one atomic unit: re-read under
// FOR UPDATE, flip the status, assign an agent code on the first paid
// transaction, and queue the payment.confirmed event. Disbursement runs
// after commit so its failure can never roll the transition back.
func (s *Service) applyPaid(ctx context.Context, txn *models.PaymentTransaction) (string, error) {
	var (
		purchaser *models.Agent
		paidAt    time.Time
		duplicate bool
	)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		paymentsTx := s.payments.WithTx(tx)
		locked, err := paymentsTx.LockByID(ctx, txn.ID)
		if err != nil {
			return err
		}
		if locked.Status.IsTerminal() {
			duplicate = true
			return nil
		}

		paidAt = time.Now()
		if err := paymentsTx.MarkPaid(ctx, locked.ID, paidAt); err != nil {
			return err
		}

		agentsTx := s.agents.WithTx(tx)
		agent, err := agentsTx.FindByID(ctx, locked.UserID)
		if err != nil {
			return err
		}
		agentCode := ""
		if agent == nil {
			s.logg.Warn(ctx, "payment owner not found, skipping agent code assignment")
		} else if agent.AgentCode == nil {
			seq, err := agentsTx.NextCodeSeq(ctx)
			if err != nil {
				return err
			}
			agentCode = agents.FormatCode(seq)
			if err := agentsTx.AssignCode(ctx, agent.ID, agentCode, paidAt); err != nil {
				return err
			}
			agent.AgentCode = &agentCode
			agent.Status = enums.AgentStatusActive
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"agent_id":   agent.ID.String(),
				"agent_code": agentCode,
			})
			s.logg.Info(logCtx, "agent code assigned on first paid transaction")
		} else {
			agentCode = *agent.AgentCode
		}
		purchaser = agent

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentConfirmed,
			AggregateType: enums.AggregatePaymentTransaction,
			AggregateID:   locked.ID,
			Version:       1,
			OccurredAt:    paidAt,
			Data: payloads.PaymentConfirmedEvent{
				PaymentID:   locked.ID,
				AgentID:     locked.UserID,
				AgentCode:   agentCode,
				AmountCents: locked.AmountCents,
				Currency:    locked.Currency,
				Provider:    curlec.ProviderName,
				PaidAt:      paidAt,
			},
		})
	})
	if err != nil {
		return metrics.OutcomeError, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply paid transition")
	}
	if duplicate {
		s.logg.Info(ctx, "transaction settled by concurrent delivery")
		return metrics.OutcomeDuplicate, nil
	}

	txn.Status = enums.PaymentStatusPaid
	txn.PaidAt = &paidAt
	s.logg.Info(ctx, "transaction marked paid")

	// Best-effort by contract: a disbursement failure is logged and counted,
	// never surfaced, because the paid transition is already committed.
	if s.disburser != nil && purchaser != nil {
		if _, err := s.disburser.DisburseForPayment(ctx, txn, purchaser); err != nil {
			s.logg.Error(ctx, "commission disbursement failed", err)
			s.metrics.IncDisbursement("failed")
		} else {
			s.metrics.IncDisbursement("ok")
		}
	}

	return metrics.OutcomeProcessed, nil
}

func (s *Service) applyFailed(ctx context.Context, txn *models.PaymentTransaction) (string, error) {
	var duplicate bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		paymentsTx := s.payments.WithTx(tx)
		locked, err := paymentsTx.LockByID(ctx, txn.ID)
		if err != nil {
			return err
		}
		if locked.Status.IsTerminal() {
			duplicate = true
			return nil
		}
		if err := paymentsTx.MarkFailed(ctx, locked.ID); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePaymentTransaction,
			AggregateID:   locked.ID,
			Version:       1,
			Data: payloads.PaymentFailedEvent{
				PaymentID:   locked.ID,
				AgentID:     locked.UserID,
				AmountCents: locked.AmountCents,
				Currency:    locked.Currency,
				Provider:    curlec.ProviderName,
				FailedAt:    time.Now(),
			},
		})
	})
	if err != nil {
		return metrics.OutcomeError, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply failed transition")
	}
	if duplicate {
		s.logg.Info(ctx, "transaction settled by concurrent delivery")
		return metrics.OutcomeDuplicate, nil
	}
	s.logg.Info(ctx, "transaction marked failed")
	return metrics.OutcomeProcessed, nil
}

func impliedTerminalStatus(status string) (enums.PaymentStatus, bool) {
	switch status {
	case "paid":
		return enums.PaymentStatusPaid, true
	case "failed":
		return enums.PaymentStatusFailed, true
	}
	return "", false
}

func auditPayload(event WebhookEvent) json.RawMessage {
	if len(event.Payload) > 0 {
		return event.Payload
	}
	raw, err := json.Marshal(map[string]string{
		"order_id": event.OrderID,
		"status":   event.Status,
	})
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}
