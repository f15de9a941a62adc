package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/JaimeStill/roster/internal/sources"
	"github.com/JaimeStill/roster/pkg/formatting"
	"github.com/JaimeStill/roster/pkg/middleware"
	"github.com/JaimeStill/roster/pkg/pagination"
)

const (
	EnvAPIBasePath       = "ROSTER_API_BASE_PATH"
	EnvUploadMaxSize     = "ROSTER_UPLOAD_MAX_SIZE"
	EnvUploadMaxRows     = "ROSTER_UPLOAD_MAX_ROWS"
	EnvUploadDefaultKind = "ROSTER_UPLOAD_DEFAULT_KIND"
)

const maxUploadCeiling int64 = 256 * 1024 * 1024

var corsEnv = &middleware.CORSEnv{
	Enabled:          "ROSTER_CORS_ENABLED",
	Origins:          "ROSTER_CORS_ORIGINS",
	AllowedMethods:   "ROSTER_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "ROSTER_CORS_ALLOWED_HEADERS",
	AllowCredentials: "ROSTER_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "ROSTER_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "ROSTER_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "ROSTER_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds the API mount point, source upload limits, CORS, and
// pagination.
type APIConfig struct {
	BasePath   string                `toml:"base_path"`
	Uploads    UploadConfig          `toml:"uploads"`
	CORS       middleware.CORSConfig `toml:"cors"`
	Pagination pagination.Config     `toml:"pagination"`
}

// UploadConfig bounds spreadsheet uploads to /sources. A single academy
// export runs to a few thousand rows; max_rows guards against a whole
// workbook exported as one sheet.
type UploadConfig struct {
	MaxSize     string `toml:"max_size"`
	MaxRows     int    `toml:"max_rows"`
	DefaultKind string `toml:"default_kind"`

	maxBytes int64
}

// Limits returns the upload limits the sources handler enforces.
func (c *UploadConfig) Limits() sources.UploadLimits {
	return sources.UploadLimits{
		MaxBytes:    c.maxBytes,
		MaxRows:     c.MaxRows,
		DefaultKind: sources.Kind(c.DefaultKind),
	}
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested upload, CORS, and pagination configs.
func (c *APIConfig) Finalize() error {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if v := os.Getenv(EnvAPIBasePath); v != "" {
		c.BasePath = v
	}

	if err := c.Uploads.finalize(); err != nil {
		return fmt.Errorf("uploads: %w", err)
	}
	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.Uploads.MaxSize != "" {
		c.Uploads.MaxSize = overlay.Uploads.MaxSize
	}
	if overlay.Uploads.MaxRows != 0 {
		c.Uploads.MaxRows = overlay.Uploads.MaxRows
	}
	if overlay.Uploads.DefaultKind != "" {
		c.Uploads.DefaultKind = overlay.Uploads.DefaultKind
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
}

func (c *UploadConfig) finalize() error {
	if c.MaxSize == "" {
		c.MaxSize = "50MB"
	}
	if c.MaxRows == 0 {
		c.MaxRows = 20000
	}

	if v := os.Getenv(EnvUploadMaxSize); v != "" {
		c.MaxSize = v
	}
	if v := os.Getenv(EnvUploadMaxRows); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRows = n
		}
	}
	if v := os.Getenv(EnvUploadDefaultKind); v != "" {
		c.DefaultKind = v
	}

	size, err := formatting.ParseBytes(c.MaxSize)
	if err != nil {
		return fmt.Errorf("invalid max_size: %w", err)
	}
	if size <= 0 || size > maxUploadCeiling {
		return fmt.Errorf("max_size must be between 1B and %s: %s", formatting.FormatBytes(maxUploadCeiling, 0), c.MaxSize)
	}
	c.maxBytes = size

	if c.MaxRows < 1 {
		return fmt.Errorf("max_rows must be positive: %d", c.MaxRows)
	}
	if c.DefaultKind != "" && !sources.Kind(c.DefaultKind).Valid() {
		return fmt.Errorf("default_kind %q: %w", c.DefaultKind, sources.ErrInvalidKind)
	}
	return nil
}
