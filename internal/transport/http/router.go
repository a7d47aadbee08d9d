package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"idmanager/internal/issuance/handler"
	"idmanager/internal/issuance/webhook"
	"idmanager/internal/platform/health"
	adminmw "idmanager/pkg/platform/middleware/admin"
	request "idmanager/pkg/platform/middleware/request"
)

// RequestTimeout bounds every API request. Webhook deliveries are exempt:
// they are always acknowledged with 200.
const RequestTimeout = 30 * time.Second

type Config struct {
	Issuance   *handler.Handler
	Webhooks   *webhook.Handler
	Health     *health.Handler
	AdminToken string
	Gatherer   prometheus.Gatherer
	Metrics    *request.Metrics
	Logger     *slog.Logger
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(request.LatencyMiddleware(cfg.Metrics))
	}

	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	cfg.Webhooks.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(RequestTimeout))
		r.Use(request.ContentTypeJSON)

		cfg.Issuance.RegisterPublic(r)

		r.Group(func(r chi.Router) {
			r.Use(adminmw.RequireAdminToken(cfg.AdminToken, cfg.Logger))
			cfg.Issuance.RegisterAdmin(r)
		})
	})

	return r
}
