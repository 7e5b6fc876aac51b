package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Recover)
	r.Use(AccessLog)
	r.Use(Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID", "X-Webhook-Secret"},
	}))

	r.Get("/health", Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	lh := LeadsHandler{DB: d.DB}
	r.Get("/leads", lh.List)
	r.Get("/leads/{leadID}", lh.Get)
	r.Get("/leads/{leadID}/events", lh.Events)
	r.Post("/leads/{leadID}/status", lh.OverrideStatus)

	sh := ScanHandler{Orch: d.Orch}
	r.Post("/scan/run", sh.Run)
	r.Get("/scan/status", sh.Status)

	ph := PaymentsHandler{Entitle: d.Entitle, Secret: d.WebhookSecret}
	r.Post("/payments/precheckout", ph.PreCheckout)
	r.Post("/payments/webhook", ph.Webhook)
	r.Post("/payments/{paymentID}/refund", ph.Refund)

	eh := EntitlementsHandler{Entitle: d.Entitle}
	r.Get("/entitlements/{userID}", eh.Get)

	evh := EventsHandler{Hub: d.Hub}
	r.Get("/events", evh.ServeSSE)

	return r
}
