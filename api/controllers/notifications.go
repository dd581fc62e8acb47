package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/khholdings/agentpay-backend/api/responses"
	"github.com/khholdings/agentpay-backend/api/validators"
	"github.com/khholdings/agentpay-backend/internal/notifications"
	pkgerrors "github.com/khholdings/agentpay-backend/pkg/errors"
	"github.com/khholdings/agentpay-backend/pkg/logger"
)

// ListNotifications returns an agent's most recent notifications.
func ListNotifications(repo notifications.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		agentID, err := uuid.Parse(chi.URLParam(r, "agentId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid agent id"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		rows, err := repo.ListByAgentID(ctx, agentID, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list notifications"))
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// MarkNotificationRead stamps a notification's read_at.
func MarkNotificationRead(repo notifications.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		notificationID, err := uuid.Parse(chi.URLParam(r, "notificationId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification id"))
			return
		}

		if err := repo.MarkRead(ctx, notificationID); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark notification read"))
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
