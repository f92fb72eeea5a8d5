package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nursingcollective/cartengine/api/controllers"
	"github.com/nursingcollective/cartengine/api/middleware"
	"github.com/nursingcollective/cartengine/pkg/config"
	"github.com/nursingcollective/cartengine/pkg/logger"
)

type sessionManager interface {
	controllers.TokenStore
	WithUserContext(ctx context.Context) context.Context
}

// Deps carries what the router hands to controllers. Gatherer may be nil,
// in which case /metrics is not mounted.
type Deps struct {
	Engine   controllers.CartEngine
	Session  sessionManager
	Pingers  map[string]controllers.Pinger
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	engine := deps.Engine
	var tokens controllers.TokenStore

	r.Group(func(r chi.Router) {
		if deps.Session != nil {
			tokens = deps.Session
			r.Use(middleware.Session(deps.Session))
		}

		r.Route("/session", func(r chi.Router) {
			r.Post("/login", controllers.SessionLogin(engine, tokens, logg))
			r.Post("/logout", controllers.SessionLogout(engine, tokens, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(engine, logg))
			r.Delete("/", controllers.CartClear(engine, logg))
			r.Post("/items", controllers.CartAddItem(engine, logg))
			r.Patch("/items/{productID}", controllers.CartUpdateItem(engine, logg))
			r.Delete("/items/{productID}", controllers.CartRemoveItem(engine, logg))
			r.Post("/merge", controllers.CartMerge(engine, logg))
			r.Get("/discount", controllers.CartDiscount(engine))
			r.Get("/discount/bulk", controllers.CartBulkDiscount(engine, logg))
			r.Post("/checkout", controllers.CartCheckout(engine, logg))
			r.Get("/checkout/verify", controllers.CartVerifyCheckout(engine, logg))
			r.Get("/purchases", controllers.CartPurchases(engine))
			r.Get("/purchases/{productID}", controllers.CartHasPurchased(engine, logg))
			r.Get("/orders", controllers.CartOrders(engine))
			r.Get("/newly-added", controllers.CartNewlyAdded(engine))
			r.Delete("/newly-added", controllers.CartClearNewlyAdded(engine))
		})
	})

	return r
}
