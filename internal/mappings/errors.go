package mappings

import (
	"errors"
	"net/http"
)

// Domain errors for mapping operations.
var (
	ErrNotFound       = errors.New("mapping not found")
	ErrDuplicate      = errors.New("mapping for source key already exists")
	ErrInvalidKind    = errors.New("kind must be class or student")
	ErrInvalidMapping = errors.New("source_key and target_id are required")
)

// MapHTTPStatus maps mapping domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalidKind) || errors.Is(err, ErrInvalidMapping) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
