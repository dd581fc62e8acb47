package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/khholdings/agentpay-backend/api/responses"
	"github.com/khholdings/agentpay-backend/pkg/config"
	pkgerrors "github.com/khholdings/agentpay-backend/pkg/errors"
	"github.com/khholdings/agentpay-backend/pkg/logger"
)

const readyCheckTimeout = 3 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-AgentPay-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-AgentPay-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		checks["database"] = checkDependency(ctx, dbP)
		checks["redis"] = checkDependency(ctx, redisP)
		for _, status := range checks {
			if status != "healthy" {
				healthy = false
			}
		}

		if !healthy {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency unhealthy").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}

func checkDependency(ctx context.Context, p pinger) string {
	if p == nil {
		return "skipped"
	}
	if err := p.Ping(ctx); err != nil {
		return "unhealthy"
	}
	return "healthy"
}
