package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/api/handler"
	apimw "github.com/maintenancehub/escalation-engine/internal/api/middleware"
	"github.com/maintenancehub/escalation-engine/internal/service"
)

// Services bundles what the HTTP surface calls into.
type Services struct {
	Jobs          *service.JobService
	Inbox         *service.InboxService
	Subscriptions *service.SubscriptionService
	Preferences   *service.PreferenceService
	Escalations   *service.EscalationService
	DB            handler.Pinger
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(svc Services, reg prometheus.Gatherer, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestSize(1 << 20))
	r.Use(apimw.CorrelationID(logger))
	r.Use(apimw.RequestLogger(logger))

	jh := handler.NewJobHandler(svc.Jobs, logger)
	nh := handler.NewNotificationHandler(svc.Inbox, logger)
	sh := handler.NewSubscriptionHandler(svc.Subscriptions, logger)
	ph := handler.NewPreferenceHandler(svc.Preferences, logger)
	eh := handler.NewEscalationHandler(svc.Escalations, logger)
	mh := handler.NewMetricsHandler(svc.Jobs, logger)
	hh := handler.NewHealthHandler(svc.DB)

	r.Get("/health", hh.Health)
	r.Get("/ready", hh.Ready)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/jobs", jh.Enqueue)
		r.Get("/jobs", jh.List)
		r.Get("/jobs/{id}", jh.Get)
		r.Post("/jobs/{id}/reset", jh.Reset)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/push-subscriptions", sh.Register)
			r.Get("/push-subscriptions", sh.List)

			r.Get("/preferences", ph.List)
			r.Get("/preferences/{type}", ph.Get)
			r.Put("/preferences/{type}", ph.Put)
			r.Delete("/preferences/{type}", ph.Delete)

			r.Get("/notifications", nh.List)
			r.Post("/notifications/read-all", nh.MarkAllRead)
		})
		r.Delete("/push-subscriptions/{id}", sh.Delete)
		r.Post("/push-subscriptions/{id}/deactivate", sh.Deactivate)

		r.Get("/notifications/{id}", nh.Get)
		r.Post("/notifications/{id}/read", nh.MarkRead)

		r.Get("/work-orders/{id}/escalations", eh.History)

		r.Get("/escalation-rules", eh.ListRules)
		r.Post("/escalation-rules", eh.CreateRule)
		r.Get("/escalation-rules/{id}", eh.GetRule)
		r.Put("/escalation-rules/{id}", eh.UpdateRule)
		r.Delete("/escalation-rules/{id}", eh.DeleteRule)

		r.Get("/metrics", mh.GetMetrics)
	})

	return r
}
