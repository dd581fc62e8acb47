package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/khholdings/agentpay-backend/api/responses"
	"github.com/khholdings/agentpay-backend/api/validators"
	"github.com/khholdings/agentpay-backend/internal/payments"
	"github.com/khholdings/agentpay-backend/pkg/enums"
	pkgerrors "github.com/khholdings/agentpay-backend/pkg/errors"
	"github.com/khholdings/agentpay-backend/pkg/logger"
)

// CheckoutService is the payment-creation surface the controllers call.
type CheckoutService interface {
	CreateOrder(ctx context.Context, userID, planID uuid.UUID) (*payments.CheckoutResult, error)
	CreateSubscription(ctx context.Context, userID, planID uuid.UUID, interval enums.BillingInterval) (*payments.CheckoutResult, error)
}

type checkoutOrderRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	PlanID string `json:"plan_id" validate:"required,uuid"`
}

type checkoutSubscriptionRequest struct {
	UserID   string `json:"user_id" validate:"required,uuid"`
	PlanID   string `json:"plan_id" validate:"required,uuid"`
	Interval string `json:"interval" validate:"required,oneof=monthly quarterly semi_annually annually"`
}

// CheckoutOrder opens a one-off gateway order for a plan.
func CheckoutOrder(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req checkoutOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		userID, planID, err := parseCheckoutIDs(req.UserID, req.PlanID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.CreateOrder(ctx, userID, planID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// CheckoutSubscription opens a recurring gateway subscription for a plan.
func CheckoutSubscription(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req checkoutSubscriptionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		userID, planID, err := parseCheckoutIDs(req.UserID, req.PlanID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		interval, err := enums.ParseBillingInterval(req.Interval)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid interval"))
			return
		}

		result, err := svc.CreateSubscription(ctx, userID, planID, interval)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func parseCheckoutIDs(rawUser, rawPlan string) (uuid.UUID, uuid.UUID, error) {
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	planID, err := uuid.Parse(rawPlan)
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan id")
	}
	return userID, planID, nil
}
