package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/contaflow/contaflow/internal/batch"
	"github.com/contaflow/contaflow/internal/mapping"
	"github.com/contaflow/contaflow/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	BatchHandler   *batch.Handler
	MappingHandler *mapping.Handler
	JobHandler     *jobs.Handler
}

// NewRouter constructs the chi.Router with contaflow defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.BatchHandler != nil {
		params.BatchHandler.MountRoutes(r)
	}
	if params.MappingHandler != nil {
		params.MappingHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(sub chi.Router) {
			params.JobHandler.MountRoutes(sub)
		})
	}

	return r
}
