package config

import (
	"fmt"
	"maps"
	"os"
	"strconv"

	"github.com/JaimeStill/roster/internal/reconcile"
	"github.com/JaimeStill/roster/internal/sources"
)

const (
	EnvReconcileBatchSize          = "ROSTER_RECONCILE_BATCH_SIZE"
	EnvReconcileProbeChunkSize     = "ROSTER_RECONCILE_PROBE_CHUNK_SIZE"
	EnvReconcileCreatePlaceholders = "ROSTER_RECONCILE_CREATE_PLACEHOLDERS"
)

// maxBatchSize is the largest atomic commit the document store accepts.
const maxBatchSize = 500

// LayoutConfig maps spreadsheet column letters to row fields for one source
// format.
type LayoutConfig struct {
	HeaderRows int               `toml:"header_rows"`
	Columns    map[string]string `toml:"columns"`
	Required   []string          `toml:"required"`
}

// CollectionsConfig names the stored document collections.
type CollectionsConfig struct {
	Students      string `toml:"students"`
	Classes       string `toml:"classes"`
	Staff         string `toml:"staff"`
	Consultations string `toml:"consultations"`
	Enrollments   string `toml:"enrollments"`
}

// ReconcileConfig holds the explicit inputs of every reconciliation run.
type ReconcileConfig struct {
	BatchSize          int                     `toml:"batch_size"`
	ProbeChunkSize     int                     `toml:"probe_chunk_size"`
	CreatePlaceholders bool                    `toml:"create_placeholders"`
	Collections        CollectionsConfig       `toml:"collections"`
	Abbreviations      map[string]string       `toml:"abbreviations"`
	Layouts            map[string]LayoutConfig `toml:"layouts"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ReconcileConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. Abbreviations and layouts
// merge per key.
func (c *ReconcileConfig) Merge(overlay *ReconcileConfig) {
	if overlay.BatchSize != 0 {
		c.BatchSize = overlay.BatchSize
	}
	if overlay.ProbeChunkSize != 0 {
		c.ProbeChunkSize = overlay.ProbeChunkSize
	}
	if overlay.CreatePlaceholders {
		c.CreatePlaceholders = true
	}

	if overlay.Collections.Students != "" {
		c.Collections.Students = overlay.Collections.Students
	}
	if overlay.Collections.Classes != "" {
		c.Collections.Classes = overlay.Collections.Classes
	}
	if overlay.Collections.Staff != "" {
		c.Collections.Staff = overlay.Collections.Staff
	}
	if overlay.Collections.Consultations != "" {
		c.Collections.Consultations = overlay.Collections.Consultations
	}
	if overlay.Collections.Enrollments != "" {
		c.Collections.Enrollments = overlay.Collections.Enrollments
	}

	if len(overlay.Abbreviations) > 0 {
		if c.Abbreviations == nil {
			c.Abbreviations = make(map[string]string)
		}
		maps.Copy(c.Abbreviations, overlay.Abbreviations)
	}
	if len(overlay.Layouts) > 0 {
		if c.Layouts == nil {
			c.Layouts = make(map[string]LayoutConfig)
		}
		maps.Copy(c.Layouts, overlay.Layouts)
	}
}

// Options returns the pipeline options described by the config.
func (c *ReconcileConfig) Options() reconcile.Options {
	return reconcile.Options{
		Collections: reconcile.Collections{
			Students:      c.Collections.Students,
			Classes:       c.Collections.Classes,
			Staff:         c.Collections.Staff,
			Consultations: c.Collections.Consultations,
			Enrollments:   c.Collections.Enrollments,
		},
		ProbeChunkSize:     c.ProbeChunkSize,
		BatchSize:          c.BatchSize,
		Abbreviations:      maps.Clone(c.Abbreviations),
		CreatePlaceholders: c.CreatePlaceholders,
	}
}

// SourceLayouts returns the built-in layouts overlaid with configured ones.
func (c *ReconcileConfig) SourceLayouts() (sources.Layouts, error) {
	out := sources.DefaultLayouts()
	for name, lc := range c.Layouts {
		l := sources.Layout{
			Name:       name,
			HeaderRows: lc.HeaderRows,
			Columns:    make(map[string]sources.Field, len(lc.Columns)),
		}
		for col, field := range lc.Columns {
			l.Columns[col] = sources.Field(field)
		}
		for _, f := range lc.Required {
			l.Required = append(l.Required, sources.Field(f))
		}
		if err := l.Validate(); err != nil {
			return nil, err
		}
		out[name] = l
	}
	return out, nil
}

func (c *ReconcileConfig) loadDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 400
	}
	if c.ProbeChunkSize == 0 {
		c.ProbeChunkSize = reconcile.DefaultProbeChunkSize
	}
	d := reconcile.DefaultCollections
	if c.Collections.Students == "" {
		c.Collections.Students = d.Students
	}
	if c.Collections.Classes == "" {
		c.Collections.Classes = d.Classes
	}
	if c.Collections.Staff == "" {
		c.Collections.Staff = d.Staff
	}
	if c.Collections.Consultations == "" {
		c.Collections.Consultations = d.Consultations
	}
	if c.Collections.Enrollments == "" {
		c.Collections.Enrollments = d.Enrollments
	}
}

func (c *ReconcileConfig) loadEnv() {
	if v := os.Getenv(EnvReconcileBatchSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.BatchSize = n
		}
	}
	if v := os.Getenv(EnvReconcileProbeChunkSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ProbeChunkSize = n
		}
	}
	if v := os.Getenv(EnvReconcileCreatePlaceholders); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.CreatePlaceholders = b
		}
	}
}

func (c *ReconcileConfig) validate() error {
	if c.BatchSize < 1 || c.BatchSize > maxBatchSize {
		return fmt.Errorf("batch_size must be between 1 and %d: %d", maxBatchSize, c.BatchSize)
	}
	if c.ProbeChunkSize < 1 {
		return fmt.Errorf("probe_chunk_size must be positive: %d", c.ProbeChunkSize)
	}
	if _, err := c.SourceLayouts(); err != nil {
		return fmt.Errorf("layouts: %w", err)
	}
	return nil
}
