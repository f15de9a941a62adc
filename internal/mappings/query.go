package mappings

import (
	"net/url"

	"github.com/JaimeStill/roster/pkg/query"
	"github.com/JaimeStill/roster/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "mappings", "m").
	Project("id", "ID").
	Project("kind", "Kind").
	Project("source_key", "SourceKey").
	Project("target_id", "TargetID").
	Project("note", "Note").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{Field: "SourceKey"}

const returning = "RETURNING id, kind, source_key, target_id, note, created_at, updated_at"

// Filters contains optional filtering criteria for mapping queries.
type Filters struct {
	Kind      *string `json:"kind,omitempty"`
	SourceKey *string `json:"source_key,omitempty"`
	TargetID  *string `json:"target_id,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Kind", f.Kind).
		WhereContains("SourceKey", f.SourceKey).
		WhereEquals("TargetID", f.TargetID)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if k := values.Get("kind"); k != "" {
		f.Kind = &k
	}
	if sk := values.Get("source_key"); sk != "" {
		f.SourceKey = &sk
	}
	if t := values.Get("target_id"); t != "" {
		f.TargetID = &t
	}

	return f
}

func scanMapping(s repository.Scanner) (Mapping, error) {
	var m Mapping
	err := s.Scan(
		&m.ID,
		&m.Kind,
		&m.SourceKey,
		&m.TargetID,
		&m.Note,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}
