package api

import (
	"net/http"

	"github.com/pencilops/gradeflow/internal/config"
	"github.com/pencilops/gradeflow/internal/runs"
	"github.com/pencilops/gradeflow/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
) {
	routes.Register(
		mux,
		domain.Submissions.Handler(cfg.API.MaxUploadSizeBytes()).Routes(),
		runs.NewHandler(
			domain.Engine,
			domain.Runs,
			runtime.Logger,
			runtime.Pagination,
		).Routes(),
	)
}
