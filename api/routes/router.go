package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	admincontrollers "github.com/sashimarconi/checkout-backend/api/controllers/admin"
	funnelcontrollers "github.com/sashimarconi/checkout-backend/api/controllers/funnel"
	"github.com/sashimarconi/checkout-backend/api/handlers"
	"github.com/sashimarconi/checkout-backend/api/middleware"
	funnelsvc "github.com/sashimarconi/checkout-backend/internal/funnel"
	"github.com/sashimarconi/checkout-backend/internal/orders"
	"github.com/sashimarconi/checkout-backend/pkg/config"
	"github.com/sashimarconi/checkout-backend/pkg/logger"
	"github.com/sashimarconi/checkout-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB     handlers.Pinger
	Redis  *redis.Client
	PubSub handlers.Pinger

	FunnelService funnelsvc.Service
	OrderService  orders.Service
	CartRepo      funnelsvc.Repository

	Metrics prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	readyDeps := map[string]handlers.Pinger{
		"db":     deps.DB,
		"pubsub": deps.PubSub,
	}
	if deps.Redis != nil {
		readyDeps["redis"] = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", handlers.HealthLive(cfg))
		r.Get("/ready", handlers.HealthReady(cfg, logg, readyDeps))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/funnel", func(r chi.Router) {
		r.Use(middleware.FunnelRateLimit(cfg.RateLimit, deps.Redis, logg))
		r.Post("/cart", funnelcontrollers.CartUpsert(deps.FunnelService, logg))
		r.Post("/order", funnelcontrollers.OrderMaterialize(deps.OrderService, logg))
	})

	r.Route("/admin/v1", func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.AdminJWT, logg))
		r.Get("/orders", admincontrollers.OrderList(deps.OrderService, logg))
		r.Get("/orders/{orderId}", admincontrollers.OrderDetail(deps.OrderService, logg))
		r.Post("/orders/{orderId}/status", admincontrollers.OrderStatusChange(deps.OrderService, logg))
		r.Get("/carts", admincontrollers.CartList(deps.CartRepo, logg))
	})

	return r
}
