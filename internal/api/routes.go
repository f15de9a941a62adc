package api

import (
	"net/http"

	"github.com/JaimeStill/roster/internal/config"
	"github.com/JaimeStill/roster/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
) {
	archive := newArchiveHandler(
		runtime.Storage,
		domain.Sources,
		runtime.Logger,
		cfg.Storage.MaxListSize,
	)

	routes.Register(
		mux,
		domain.Sources.Handler(cfg.API.Uploads.Limits()).Routes(),
		domain.Mappings.Handler().Routes(),
		domain.Runs.Handler().Routes(),
		archive.routes(),
	)
}
