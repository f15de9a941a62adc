package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/roster/internal/classify"
	"github.com/JaimeStill/roster/internal/docstore"
	"github.com/JaimeStill/roster/internal/identity"
	"github.com/JaimeStill/roster/internal/matching"
	"github.com/JaimeStill/roster/internal/plan"
)

// ErrSnapshot wraps any read failure while loading a snapshot. Nothing is
// planned or executed when it is returned.
var ErrSnapshot = errors.New("snapshot load failed")

// Snapshot is every document a job plans against, read once before planning.
type Snapshot struct {
	Students      []docstore.Document
	Classes       []docstore.Document
	Staff         []docstore.Document
	Consultations []docstore.Document
	// Enrollments holds each student's owned sub-records keyed by student id.
	// Students without sub-records have no entry.
	Enrollments map[string][]docstore.Document
}

// Load scans the flat collections concurrently, then probes every student's
// enrollment sub-collection with at most opts.ProbeChunkSize reads in flight.
func Load(ctx context.Context, store docstore.Store, opts Options) (*Snapshot, error) {
	opts = opts.withDefaults()
	snap := &Snapshot{Enrollments: make(map[string][]docstore.Document)}

	g, gctx := errgroup.WithContext(ctx)
	scan := func(collection string, dst *[]docstore.Document) {
		g.Go(func() error {
			docs, err := store.Scan(gctx, collection)
			if err != nil {
				return fmt.Errorf("scan %s: %w", collection, err)
			}
			*dst = docs
			return nil
		})
	}

	scan(opts.Collections.Students, &snap.Students)
	scan(opts.Collections.Classes, &snap.Classes)
	scan(opts.Collections.Staff, &snap.Staff)
	scan(opts.Collections.Consultations, &snap.Consultations)

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshot, err)
	}

	children := make([][]docstore.Document, len(snap.Students))

	p, pctx := errgroup.WithContext(ctx)
	p.SetLimit(opts.ProbeChunkSize)

	for i, s := range snap.Students {
		p.Go(func() error {
			collection := s.Sub(opts.Collections.Enrollments)
			docs, err := store.Scan(pctx, collection)
			if err != nil {
				return fmt.Errorf("probe %s: %w", collection, err)
			}
			children[i] = docs
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshot, err)
	}

	for i, s := range snap.Students {
		if len(children[i]) > 0 {
			snap.Enrollments[s.ID] = children[i]
		}
	}

	return snap, nil
}

// EnrollmentCounts returns the number of owned enrollment sub-records per
// student id.
func (s *Snapshot) EnrollmentCounts() map[string]int {
	counts := make(map[string]int, len(s.Enrollments))
	for id, docs := range s.Enrollments {
		counts[id] = len(docs)
	}
	return counts
}

// Normalizer builds the batch school index from every stored student school
// plus any extra raw school names from an import.
func (s *Snapshot) Normalizer(extra ...string) (*identity.Normalizer, *identity.SchoolIndex) {
	raw := make([]string, 0, len(s.Students)+len(extra))
	for _, d := range s.Students {
		raw = append(raw, d.String(fieldSchool))
	}
	raw = append(raw, extra...)

	index := identity.BuildSchoolIndex(raw)
	return identity.NewNormalizer(index), index
}

func (s *Snapshot) students() map[string]docstore.Document {
	out := make(map[string]docstore.Document, len(s.Students))
	for _, d := range s.Students {
		out[d.ID] = d
	}
	return out
}

func (s *Snapshot) references() map[string][]docstore.Document {
	out := make(map[string][]docstore.Document)
	for _, d := range s.Consultations {
		if id := d.String(fieldStudentID); id != "" {
			out[id] = append(out[id], d)
		}
	}
	return out
}

func (s *Snapshot) people() []matching.Person {
	out := make([]matching.Person, 0, len(s.Students))
	for _, d := range s.Students {
		p := matching.Person{
			ID:     d.ID,
			Name:   d.String(fieldName),
			School: d.String(fieldSchool),
			Grade:  d.String(fieldGrade),
		}
		for _, f := range phoneFields {
			if v := d.String(f); v != "" {
				p.Phones = append(p.Phones, v)
			}
		}
		out = append(out, p)
	}
	return out
}

func candidates(docs []docstore.Document) []matching.Candidate {
	out := make([]matching.Candidate, 0, len(docs))
	for _, d := range docs {
		out = append(out, matching.Candidate{ID: d.ID, Name: d.String(fieldName)})
	}
	return out
}

func (s *Snapshot) planSnapshot(collection string) plan.Snapshot {
	return plan.Snapshot{
		Collection: collection,
		Documents:  s.students(),
		Children:   s.Enrollments,
		References: s.references(),
	}
}

func (s *Snapshot) noHistory(opts Options) []classify.Candidate {
	h := classify.DefaultHistoryOptions
	h.ArrayField = opts.Collections.Enrollments
	return classify.NoHistory(s.Students, s.EnrollmentCounts(), h)
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
