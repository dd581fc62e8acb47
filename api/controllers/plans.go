package controllers

import (
	"net/http"

	"github.com/khholdings/agentpay-backend/api/responses"
	"github.com/khholdings/agentpay-backend/internal/plans"
	pkgerrors "github.com/khholdings/agentpay-backend/pkg/errors"
	"github.com/khholdings/agentpay-backend/pkg/logger"
)

// ListPlans returns the active insurance plans.
func ListPlans(repo plans.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rows, err := repo.ListActive(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list plans"))
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
