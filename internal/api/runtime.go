package api

import (
	"github.com/JaimeStill/roster/internal/config"
	"github.com/JaimeStill/roster/internal/infrastructure"
	"github.com/JaimeStill/roster/internal/sources"
	"github.com/JaimeStill/roster/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
	Reconcile  config.ReconcileConfig
	Layouts    sources.Layouts
}

// NewRuntime creates an API runtime with a module-scoped logger. Configured
// sheet layouts are resolved here so a bad layout fails startup.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) (*Runtime, error) {
	layouts, err := cfg.Reconcile.SourceLayouts()
	if err != nil {
		return nil, err
	}

	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Metrics:   infra.Metrics,
			Database:  infra.Database,
			Storage:   infra.Storage,
		},
		Pagination: cfg.API.Pagination,
		Reconcile:  cfg.Reconcile,
		Layouts:    layouts,
	}, nil
}
