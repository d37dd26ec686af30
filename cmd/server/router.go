package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	batchhandler "github.com/dr-roshyara/public-digit-sub008/internal/batch/handler"
	batchservice "github.com/dr-roshyara/public-digit-sub008/internal/batch/service"
	credhandler "github.com/dr-roshyara/public-digit-sub008/internal/credential/handler"
	credservice "github.com/dr-roshyara/public-digit-sub008/internal/credential/service"
	moduleshandler "github.com/dr-roshyara/public-digit-sub008/internal/modules/handler"
	modulesservice "github.com/dr-roshyara/public-digit-sub008/internal/modules/service"
	"github.com/dr-roshyara/public-digit-sub008/internal/platform/config"
	"github.com/dr-roshyara/public-digit-sub008/internal/platform/database"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/httputil"
	adminmw "github.com/dr-roshyara/public-digit-sub008/pkg/platform/middleware/admin"
	requestmw "github.com/dr-roshyara/public-digit-sub008/pkg/platform/middleware/request"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/middleware/requesttime"
)

// newRouter assembles the admin API, health, and metrics surfaces.
func newRouter(
	cfg config.Server,
	log *slog.Logger,
	credentials *credservice.Service,
	orchestrator *batchservice.Orchestrator,
	modules *modulesservice.Service,
	pool *database.Pool,
) http.Handler {
	r := chi.NewRouter()
	r.Use(requestmw.RequestID)
	r.Use(requestmw.Recovery(log))
	r.Use(requesttime.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]string{"status": "ok"}
		if pool != nil {
			if err := pool.Health(req.Context()); err != nil {
				status["status"] = "degraded"
				status["database"] = err.Error()
				httputil.WriteJSON(w, http.StatusServiceUnavailable, status)
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, status)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(admin chi.Router) {
		admin.Use(adminmw.RequireAdminToken(cfg.AdminToken, log))

		credhandler.New(credentials, log).Register(admin)
		batchhandler.New(orchestrator, log).Register(admin)
		moduleshandler.New(modules, log).Register(admin)
	})

	return r
}
