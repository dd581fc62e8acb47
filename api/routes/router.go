package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/khholdings/agentpay-backend/api/controllers"
	webhookcontrollers "github.com/khholdings/agentpay-backend/api/controllers/webhooks"
	"github.com/khholdings/agentpay-backend/api/middleware"
	"github.com/khholdings/agentpay-backend/internal/notifications"
	"github.com/khholdings/agentpay-backend/internal/plans"
	"github.com/khholdings/agentpay-backend/internal/reconcile"
	"github.com/khholdings/agentpay-backend/pkg/config"
	"github.com/khholdings/agentpay-backend/pkg/db"
	"github.com/khholdings/agentpay-backend/pkg/logger"
	"github.com/khholdings/agentpay-backend/pkg/redis"
)

// RouterParams carries everything the router wires into handlers.
type RouterParams struct {
	Config            *config.Config
	Logger            *logger.Logger
	DB                db.Pinger
	Redis             *redis.Client
	CheckoutService   controllers.CheckoutService
	PlansRepo         plans.Repository
	NotificationsRepo notifications.Repository
	ReconcileService  webhookcontrollers.ReconcileService
	WebhookVerifier   *reconcile.Verifier
	WebhookGuard      *reconcile.DedupeGuard
	MetricsRegistry   *prometheus.Registry
}

// NewRouter assembles the HTTP surface.
func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, params.Redis))
	})

	if params.MetricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/curlec", webhookcontrollers.CurlecWebhook(
			params.ReconcileService,
			params.WebhookVerifier,
			params.WebhookGuard,
			logg,
		))

		r.Get("/plans", controllers.ListPlans(params.PlansRepo, logg))

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/order", controllers.CheckoutOrder(params.CheckoutService, logg))
			r.Post("/subscription", controllers.CheckoutSubscription(params.CheckoutService, logg))
		})

		r.Route("/agents/{agentId}/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(params.NotificationsRepo, logg))
		})
		r.Post("/notifications/{notificationId}/read", controllers.MarkNotificationRead(params.NotificationsRepo, logg))
	})

	return r
}
