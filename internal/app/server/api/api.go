// Syncpoint server API:
//
//	POST /api/v1/sync                           # run one synchronization cycle
//	GET  /api/v1/sync/sessions/{id}             # session progress
//	GET  /api/v1/sync/conflicts                 # pending conflicts for a client
//	POST /api/v1/sync/conflicts/{id}/resolve    # resolve a pending conflict
//	GET  /api/v1/sync/stats                     # per-client counters
//	GET  /api/v1/health                         # liveness
//	GET  /metrics                               # prometheus metrics
package api

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/exp/slog"

	healthAPI "syncpoint/internal/app/server/api/http/health"
	"syncpoint/internal/app/server/api/http/middleware"
	"syncpoint/internal/app/server/api/http/middleware/logger"
	syncAPI "syncpoint/internal/app/server/api/http/sync"
	syncdomain "syncpoint/internal/domain/sync"
)

type Handlers struct {
	Health *healthAPI.Handler
	Sync   *syncAPI.Handler
}

// New builds a *chi.Mux with every operation registered through huma.
// upstream backs the health endpoint's reachability probe and may be nil.
func New(engine *syncdomain.Engine, upstream healthAPI.Pinger, registry *prometheus.Registry, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	config := huma.DefaultConfig("Syncpoint API", "1.0.0")
	API := humachi.New(mux, config)

	h := handlers(engine, upstream, log)
	h.Health.SetupRoutes(API)
	h.Sync.SetupRoutes(API)

	if registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	return mux
}

func handlers(engine *syncdomain.Engine, upstream healthAPI.Pinger, log *slog.Logger) *Handlers {
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(upstream, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	syncHandler := syncAPI.NewHandler(engine, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health: healthHandler,
		Sync:   syncHandler,
	}
}
