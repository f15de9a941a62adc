package classify

import (
	"slices"
	"strings"

	"github.com/JaimeStill/roster/internal/docstore"
)

// HistoryOptions configures NoHistory.
type HistoryOptions struct {
	// StatusField holds the enrollment status of a student.
	StatusField string
	// WithdrawnStatuses are status values (case-insensitive) that exclude a
	// student from the candidate set.
	WithdrawnStatuses []string
	// ArrayField is the legacy embedded enrollment array.
	ArrayField string
	NameField  string
}

// DefaultHistoryOptions matches the student document layout.
var DefaultHistoryOptions = HistoryOptions{
	StatusField:       "status",
	WithdrawnStatuses: []string{"withdrawn", "퇴원"},
	ArrayField:        "enrollments",
	NameField:         "name",
}

// Candidate is a student with no enrollment history.
type Candidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NoHistory returns non-withdrawn students with zero enrollments across both
// the owned sub-collection (counts keyed by student id) and the legacy array
// field. The result is a deletion candidate set for an operator; nothing
// here is planned for execution.
func NoHistory(students []docstore.Document, enrollments map[string]int, opts HistoryOptions) []Candidate {
	if opts.StatusField == "" {
		opts = DefaultHistoryOptions
	}

	var out []Candidate
	for _, d := range students {
		status := strings.ToLower(strings.TrimSpace(d.String(opts.StatusField)))
		if status != "" && slices.ContainsFunc(opts.WithdrawnStatuses, func(s string) bool {
			return strings.EqualFold(s, status)
		}) {
			continue
		}

		if enrollments[d.ID] > 0 || len(d.Array(opts.ArrayField)) > 0 {
			continue
		}

		out = append(out, Candidate{ID: d.ID, Name: d.String(opts.NameField)})
	}

	slices.SortFunc(out, func(a, b Candidate) int { return strings.Compare(a.ID, b.ID) })
	return out
}
