package runs

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/roster/internal/reconcile"
	"github.com/JaimeStill/roster/internal/sources"
	"github.com/JaimeStill/roster/pkg/lifecycle"
)

// Domain errors for run operations.
var (
	ErrNotFound             = errors.New("run not found")
	ErrDuplicate            = errors.New("run already exists")
	ErrInvalidState         = errors.New("run is not in a state that allows this operation")
	ErrRunInProgress        = errors.New("another run is executing")
	ErrConfirmationRequired = errors.New("execution requires explicit confirmation")
	ErrImportJob            = errors.New("import jobs start from a source")
)

// MapHTTPStatus maps run domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, sources.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrConfirmationRequired),
		errors.Is(err, ErrImportJob),
		errors.Is(err, reconcile.ErrUnknownJob),
		errors.Is(err, reconcile.ErrSourceRequired),
		errors.Is(err, sources.ErrUnknownLayout),
		errors.Is(err, sources.ErrEmptySheet),
		errors.Is(err, sources.ErrInvalidFile):
		return http.StatusBadRequest
	case errors.Is(err, reconcile.ErrSnapshot):
		return http.StatusBadGateway
	case errors.Is(err, lifecycle.ErrShuttingDown):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
