package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/khholdings/agentpay-backend/api/responses"
	"github.com/khholdings/agentpay-backend/internal/reconcile"
	pkgerrors "github.com/khholdings/agentpay-backend/pkg/errors"
	"github.com/khholdings/agentpay-backend/pkg/logger"
)

const signatureHeader = "X-Curlec-Signature"

// ReconcileService is the reconciliation surface the webhook controller calls.
type ReconcileService interface {
	Handle(ctx context.Context, event reconcile.WebhookEvent) (string, error)
	RecordRejected(ctx context.Context, event reconcile.WebhookEvent) error
}

type webhookVerifier interface {
	Verify(payload []byte, signature string) bool
}

type dedupeGuard interface {
	CheckAndMark(ctx context.Context, orderID, status string) bool
	Release(ctx context.Context, orderID, status string)
}

type curlecWebhookBody struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// CurlecWebhook receives payment status notifications from the gateway.
//
// Any handled outcome answers 200 so the gateway stops redelivering; only a
// storage failure answers non-2xx to trigger a retry. The redis guard is a
// fast path in front of the engine's terminal-state check.
func CurlecWebhook(svc ReconcileService, verifier webhookVerifier, guard dedupeGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		var body curlecWebhookBody
		// Decode errors are tolerated; the engine records malformed events.
		_ = json.Unmarshal(payload, &body)
		event := reconcile.WebhookEvent{
			OrderID: strings.TrimSpace(body.OrderID),
			Status:  strings.TrimSpace(body.Status),
			Payload: payload,
		}

		signature := r.Header.Get(signatureHeader)
		if verifier != nil && !verifier.Verify(payload, signature) {
			if err := svc.RecordRejected(ctx, event); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record rejected webhook"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		guarded := event.OrderID != "" && event.Status != ""
		if guarded && guard != nil && guard.CheckAndMark(ctx, event.OrderID, event.Status) {
			if logg != nil {
				logg.Info(logg.WithExternalRef(ctx, event.OrderID), "webhook short-circuited by dedupe guard")
			}
			responses.WriteSuccess(w, nil)
			return
		}

		if _, err := svc.Handle(ctx, event); err != nil {
			if guarded && guard != nil {
				guard.Release(ctx, event.OrderID, event.Status)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
