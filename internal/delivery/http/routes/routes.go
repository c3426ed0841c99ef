package routes

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"leadharvest/internal/delivery/http/handler"
	"leadharvest/internal/ws"
)

// Registry wires every HTTP surface of the server process.
type Registry struct {
	health     *handler.HealthHandler
	jobs       *handler.JobHandler
	duplicates *handler.DuplicateHandler
	wsHandler  *ws.Handler
	registry   *prometheus.Registry
}

func NewRegistry(
	health *handler.HealthHandler,
	jobs *handler.JobHandler,
	duplicates *handler.DuplicateHandler,
	wsHandler *ws.Handler,
	promRegistry *prometheus.Registry,
) *Registry {
	return &Registry{
		health:     health,
		jobs:       jobs,
		duplicates: duplicates,
		wsHandler:  wsHandler,
		registry:   promRegistry,
	}
}

func (r *Registry) Register(app *fiber.App) {
	if app == nil {
		return
	}

	app.Get("/health", r.health.HandleHealth)

	if r.registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})))
	}
	if r.wsHandler != nil {
		app.Get("/ws/jobs", r.wsHandler.HandleJobsWS)
	}

	api := app.Group("/api")
	v1 := api.Group("/v1")

	v1.Post("/scraping-jobs", r.jobs.HandleCreateJob)
	v1.Get("/scraping-jobs/:id", r.jobs.HandleGetJob)
	v1.Post("/scraping-jobs/:id/cancel", r.jobs.HandleCancelJob)

	v1.Get("/duplicates/pending", r.duplicates.HandleListPending)
}
