package api

import (
	"github.com/JaimeStill/roster/internal/docstore"
	"github.com/JaimeStill/roster/internal/mappings"
	"github.com/JaimeStill/roster/internal/reconcile"
	"github.com/JaimeStill/roster/internal/runs"
	"github.com/JaimeStill/roster/internal/sources"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Sources  sources.System
	Mappings mappings.System
	Runs     runs.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	db := runtime.Database.Connection()

	sourcesSystem := sources.New(
		db,
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
	)

	mappingsSystem := mappings.New(
		db,
		runtime.Logger,
		runtime.Pagination,
	)

	pipeline := reconcile.New(
		docstore.New(db, runtime.Logger),
		runtime.Logger,
		runtime.Reconcile.Options(),
	)

	runsSystem := runs.New(
		db,
		pipeline,
		sourcesSystem,
		mappingsSystem,
		runtime.Layouts,
		runtime.Lifecycle,
		runs.NewMetrics(runtime.Metrics),
		runtime.Logger,
		runtime.Pagination,
	)

	return &Domain{
		Sources:  sourcesSystem,
		Mappings: mappingsSystem,
		Runs:     runsSystem,
	}
}
