package query

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// SortField is one ORDER BY term, named by view field.
type SortField struct {
	Field      string
	Descending bool
}

// ParseSortFields parses "name,-createdAt" style input. A leading "-" sorts
// descending. Returns nil for empty input.
func ParseSortFields(s string) []SortField {
	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

// Builder accumulates WHERE conditions and ordering for a projection.
// Placeholders are numbered as conditions are added.
type Builder struct {
	projection  *ProjectionMap
	where       []string
	args        []any
	order       []SortField
	defaultSort []SortField
}

// NewBuilder creates a Builder with optional default ordering.
func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{
		projection:  projection,
		defaultSort: defaultSort,
	}
}

// OrderByFields overrides the default ordering. Fields the projection does
// not map are dropped.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.order = b.order[:0]
	for _, f := range fields {
		if b.projection.Has(f.Field) {
			b.order = append(b.order, f)
		}
	}
	return b
}

// WhereEquals adds field = value. No-op for nil values.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	b.where = append(b.where, b.projection.Column(field)+" = "+b.param(value))
	return b
}

// WhereContains adds a case-insensitive substring match. No-op for nil or
// empty values.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	b.where = append(b.where, b.projection.Column(field)+" ILIKE "+b.param("%"+*value+"%"))
	return b
}

// WhereSince adds field >= t. No-op for nil.
func (b *Builder) WhereSince(field string, t *time.Time) *Builder {
	if t == nil {
		return b
	}
	b.where = append(b.where, b.projection.Column(field)+" >= "+b.param(*t))
	return b
}

// WhereSearch matches search against any of fields. No-op for nil or empty
// search.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}
	p := b.param("%" + *search + "%")
	ors := make([]string, len(fields))
	for i, f := range fields {
		ors[i] = b.projection.Column(f) + "::text ILIKE " + p
	}
	b.where = append(b.where, "("+strings.Join(ors, " OR ")+")")
	return b
}

// Build returns the full SELECT with conditions and ordering.
func (b *Builder) Build() (string, []any) {
	return b.selectFrom() + b.whereClause() + b.orderClause(), b.args
}

// BuildCount returns COUNT(*) over the current conditions.
func (b *Builder) BuildCount() (string, []any) {
	return "SELECT COUNT(*) FROM " + b.projection.From() + b.whereClause(), b.args
}

// BuildPage returns one page of the ordered SELECT. page is 1-based.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	q := b.selectFrom() + b.whereClause() + b.orderClause() +
		fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
	return q, b.args
}

// BuildSingle selects one row by idField, ignoring other conditions.
func (b *Builder) BuildSingle(idField string, id any) (string, []any) {
	q := b.selectFrom() + " WHERE " + b.projection.Column(idField) + " = $1"
	return q, []any{id}
}

func (b *Builder) param(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *Builder) selectFrom() string {
	return "SELECT " + b.projection.Columns() + " FROM " + b.projection.From()
}

func (b *Builder) whereClause() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

func (b *Builder) orderClause() string {
	fields := b.order
	if len(fields) == 0 {
		fields = b.defaultSort
	}
	if len(fields) == 0 {
		return ""
	}

	terms := make([]string, len(fields))
	for i, f := range fields {
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		terms[i] = b.projection.Column(f.Field) + " " + dir
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
