package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/khholdings/agentpay-backend/internal/commissions"
	"github.com/khholdings/agentpay-backend/pkg/enums"
	"github.com/khholdings/agentpay-backend/pkg/logger"
	"github.com/khholdings/agentpay-backend/pkg/outbox"
	"github.com/khholdings/agentpay-backend/pkg/outbox/idempotency"
	"github.com/khholdings/agentpay-backend/pkg/outbox/payloads"
)

const paymentNotificationConsumer = "payment-notifications"

// Consumer turns payment.confirmed events into agent notifications. Delivery
// is at-least-once; the idempotency manager collapses redeliveries and a
// handler failure nacks so Pub/Sub retries.
type Consumer struct {
	service      *Service
	payouts      commissions.Repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a payment notification consumer.
func NewConsumer(service *Service, payouts commissions.Repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if service == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	if payouts == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("payment events subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		service:      service,
		payouts:      payouts,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventPaymentConfirmed) {
		c.logg.Info(logCtx, "skipping non-payment event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, paymentNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	var payload payloads.PaymentConfirmedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, paymentNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"payment_id": payload.PaymentID.String(),
		"agent_id":   payload.AgentID.String(),
	})

	if err := c.handlePayload(ctx, payload); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, paymentNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	c.logg.Info(logCtx, "payment notifications delivered")
	return processResult{ack: true}
}

// handlePayload notifies the paying agent and every upline agent with a
// recorded payout for this payment.
func (c *Consumer) handlePayload(ctx context.Context, payload payloads.PaymentConfirmedEvent) error {
	if payload.AgentID == uuid.Nil {
		return fmt.Errorf("agent id missing")
	}
	if err := c.service.CreatePaymentNotification(ctx, payload.AgentID, payload.AmountCents, payload.Currency, payload.Provider, payload.PaymentID); err != nil {
		return err
	}

	payouts, err := c.payouts.ListByPaymentID(ctx, payload.PaymentID)
	if err != nil {
		return err
	}
	for _, payout := range payouts {
		if err := c.service.CreateCommissionNotification(ctx, payout.AgentID, payout.AmountCents, payload.Currency, payout.Level); err != nil {
			return err
		}
	}
	return nil
}
