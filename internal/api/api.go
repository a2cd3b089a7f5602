// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/pencilops/gradeflow/internal/config"
	"github.com/pencilops/gradeflow/internal/infrastructure"
	"github.com/pencilops/gradeflow/pkg/middleware"
	"github.com/pencilops/gradeflow/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
// At startup it recovers any run that was mid-flight when the process last
// stopped, re-entering each at its next unexecuted node.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(runtime)

	infra.Lifecycle.OnStartup(func() {
		ctx := infra.Lifecycle.Context()

		ids, err := domain.Runs.Active(ctx)
		if err != nil {
			runtime.Logger.Error("active run recovery scan failed", "error", err)
			return
		}

		for _, id := range ids {
			if err := domain.Engine.Recover(ctx, id); err != nil {
				runtime.Logger.Error("run recovery failed", "run", id, "error", err)
			}
		}
	})

	mux := http.NewServeMux()
	registerRoutes(mux, domain, cfg, runtime)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Infrastructure.Logger))

	return m, nil
}
