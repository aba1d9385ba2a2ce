package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/localmarket/marketplace-backend/api/controllers"
	"github.com/localmarket/marketplace-backend/api/middleware"
	"github.com/localmarket/marketplace-backend/internal/deliveries"
	"github.com/localmarket/marketplace-backend/internal/matching"
	"github.com/localmarket/marketplace-backend/internal/notifications"
	"github.com/localmarket/marketplace-backend/pkg/config"
	"github.com/localmarket/marketplace-backend/pkg/logger"
	"github.com/localmarket/marketplace-backend/pkg/metrics"
	"github.com/localmarket/marketplace-backend/pkg/redis"
)

// Dependencies are the services and infrastructure the API routes need.
// Redis may be nil, which disables idempotency replay and rate limiting.
type Dependencies struct {
	DB            controllers.Pinger
	Redis         *redis.Client
	Gatherer      prometheus.Gatherer
	HTTPMetrics   *metrics.HTTPMetrics
	Matching      matching.Service
	Deliveries    deliveries.Service
	Notifications notifications.Service
}

func passthrough(next http.Handler) http.Handler { return next }

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	checks := []controllers.ReadinessCheck{{Name: "db", Pinger: deps.DB}}
	if deps.Redis != nil {
		checks = append(checks, controllers.ReadinessCheck{Name: "redis", Pinger: deps.Redis})
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, checks...))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	matchingPolicy := middleware.RateLimitPolicy{
		Name:   "matching",
		Window: cfg.RateLimit.MatchingWindow,
		Limit:  cfg.RateLimit.MatchingLimit,
	}

	rateLimit, idempotency := passthrough, passthrough
	if deps.Redis != nil {
		rateLimit = middleware.RateLimit(matchingPolicy, deps.Redis, logg)
		idempotency = middleware.Idempotency(deps.Redis, cfg.Redis.IdempotencyTTL, logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.With(rateLimit).Get("/couriers", controllers.MatchCouriers(deps.Matching, logg))
		})

		r.Route("/courier/jobs/{jobId}", func(r chi.Router) {
			r.Get("/", controllers.DeliveryJobDetail(deps.Deliveries, logg))
			r.With(idempotency).Post("/accept", controllers.AcceptDeliveryJob(deps.Deliveries, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})
	})

	return r
}
