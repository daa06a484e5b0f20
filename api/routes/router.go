package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/packfinderz-pos/api/controllers"
	"github.com/angelmondragon/packfinderz-pos/api/middleware"
	"github.com/angelmondragon/packfinderz-pos/pkg/config"
	"github.com/angelmondragon/packfinderz-pos/pkg/logger"
)

// Dependencies are the services the admin API serves. A nil service answers with an error.
type Dependencies struct {
	Store        controllers.Pinger
	Outbox       controllers.OutboxService
	Sync         controllers.SyncRunner
	Catalog      controllers.CatalogReader
	Notices      controllers.NoticeFeed
	Connectivity controllers.OnlineReporter
	// ManualOnline is set only in manual connectivity mode.
	ManualOnline controllers.OnlineSetter
	Gatherer     prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Admin.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Store))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/outbox", func(r chi.Router) {
			r.Post("/", controllers.EnqueueSale(deps.Outbox, logg))
			r.Get("/", controllers.ListOutbox(deps.Outbox, logg))
			r.Get("/stats", controllers.OutboxStats(deps.Outbox, logg))
			r.Delete("/{id}", controllers.DeleteOutboxEntry(deps.Outbox, logg))
			r.Post("/{id}/requeue", controllers.RequeueOutboxEntry(deps.Outbox, logg))
		})

		r.Post("/sync", controllers.RunSync(deps.Sync, logg))
		r.Get("/sync/state", controllers.SyncState(deps.Catalog, logg))

		r.Get("/connectivity", controllers.GetConnectivity(deps.Connectivity, deps.ManualOnline, logg))
		r.Put("/connectivity", controllers.SetConnectivity(deps.ManualOnline, logg))

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/products", controllers.ListProducts(deps.Catalog, logg))
			r.Get("/categories", controllers.ListCategories(deps.Catalog, logg))
			r.Get("/customers", controllers.ListCustomers(deps.Catalog, logg))
		})

		r.Get("/notices", controllers.ListNotices(deps.Notices, logg))
	})

	return r
}
