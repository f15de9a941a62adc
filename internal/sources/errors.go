package sources

import (
	"errors"
	"net/http"
)

// Domain errors for source operations.
var (
	ErrNotFound      = errors.New("source not found")
	ErrDuplicate     = errors.New("source already exists")
	ErrFileTooLarge  = errors.New("file exceeds maximum upload size")
	ErrTooManyRows   = errors.New("sheet exceeds maximum row count")
	ErrInvalidFile   = errors.New("invalid file")
	ErrInvalidKind   = errors.New("kind must be consultations or enrollments")
	ErrEmptySheet    = errors.New("sheet has no data rows")
	ErrUnknownLayout = errors.New("unknown layout")
)

// MapHTTPStatus maps source domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrFileTooLarge) || errors.Is(err, ErrTooManyRows) {
		return http.StatusRequestEntityTooLarge
	}
	if errors.Is(err, ErrInvalidFile) ||
		errors.Is(err, ErrInvalidKind) ||
		errors.Is(err, ErrEmptySheet) ||
		errors.Is(err, ErrUnknownLayout) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
