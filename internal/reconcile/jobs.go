package reconcile

import (
	"fmt"
	"maps"

	"github.com/JaimeStill/roster/internal/classify"
	"github.com/JaimeStill/roster/internal/docstore"
	"github.com/JaimeStill/roster/internal/identity"
	"github.com/JaimeStill/roster/internal/matching"
	"github.com/JaimeStill/roster/internal/plan"
)

// cleanup classifies student ids, deletes collision duplicates with their
// children, and moves whitespace-corrupted ids to their repaired form.
// Uncollided legacy and random ids, plus students with no enrollment
// history, are only surfaced.
func cleanup(snap *Snapshot, opts Options) *Preview {
	norm, schools := snap.Normalizer()

	report := classify.Classify(snap.Students, classify.Options{
		Normalizer: norm,
		Fields:     classify.DefaultFields,
	})

	pv := &Preview{
		Job:            JobCleanup,
		Report:         &report,
		NoHistory:      snap.noHistory(opts),
		SchoolRewrites: schools.Rewrites(),
	}

	for _, c := range report.Filter(classify.ActionFlag) {
		pv.Flagged = append(pv.Flagged, Flag{ID: c.ID, Reason: flagReason(c)})
	}

	return pv.finish(plan.Cleanup(report, snap.planSnapshot(opts.Collections.Students), opts.planOptions()))
}

func flagReason(c classify.Classification) string {
	switch c.Shape {
	case identity.ShapeNumericLegacy:
		return "legacy numeric id without a canonical match"
	case identity.ShapeRandomInvalid:
		return "id does not follow the name_school_grade shape"
	}
	return string(c.Shape)
}

// promote moves every legacy array-embedded enrollment into the owned
// sub-collection and removes the exact element from the parent array.
func promote(snap *Snapshot, opts Options) *Preview {
	field := opts.Collections.Enrollments
	b := plan.NewBuilder(opts.planOptions())
	pv := &Preview{Job: JobPromote}

	for _, s := range snap.Students {
		for i, el := range s.Array(field) {
			m, ok := el.(map[string]any)
			if !ok {
				pv.skip(0, s.ID, "%s[%d] is not an object", field, i)
				continue
			}

			payload := maps.Clone(m)
			payload[fieldStudentID] = s.ID
			payload["promotedFrom"] = field

			if !b.Promote(s.Ref, field, el, opts.NewID(), payload) {
				pv.skip(0, s.ID, "%s[%d] child id already planned", field, i)
			}
		}
	}

	return pv.finish(b.Build())
}

// relink re-points enrollments whose class or teacher reference does not
// resolve. Misses are reported; classes and staff are never created.
func relink(snap *Snapshot, req Request, opts Options) *Preview {
	classes := matching.NewClassMatcher(candidates(snap.Classes), matching.ClassOptions{
		Abbreviations: opts.Abbreviations,
		Overrides:     req.ClassOverrides,
	})
	staff := matching.NewClassMatcher(candidates(snap.Staff), matching.ClassOptions{})

	b := plan.NewBuilder(opts.planOptions())
	pv := &Preview{Job: JobRelink}

	for _, studentID := range sortedKeys(snap.Enrollments) {
		for _, e := range snap.Enrollments[studentID] {
			payload := make(map[string]any)

			if res, ok := resolve(classes, e, fieldClassID, fieldClassName); !ok {
				pv.skip(0, e.Path(), "no class matches %q", e.String(fieldClassName))
			} else if res != nil {
				pv.Matches = append(pv.Matches, *res)
				payload[fieldClassID] = res.EntityID
				payload[fieldClassName] = res.EntityName
				payload["previousClassId"] = e.String(fieldClassID)
			}

			if staff.Len() > 0 {
				if res, ok := resolve(staff, e, fieldTeacherID, fieldTeacher); !ok {
					pv.skip(0, e.Path(), "no staff member matches %q", e.String(fieldTeacher))
				} else if res != nil {
					pv.Matches = append(pv.Matches, *res)
					payload[fieldTeacherID] = res.EntityID
					payload[fieldTeacher] = res.EntityName
				}
			}

			if len(payload) > 0 {
				b.Merge(e.Ref, payload, "re-point unresolved references")
			}
		}
	}

	return pv.finish(b.Build())
}

// resolve returns nil, true when the stored id already resolves or the
// document names nothing to resolve; a match, true when the reference can be
// re-pointed; and nil, false on a miss.
func resolve(m *matching.ClassMatcher, d docstore.Document, idField, nameField string) (*matching.Result, bool) {
	id, name := d.String(idField), d.String(nameField)
	if id == "" && name == "" {
		return nil, true
	}
	if _, ok := m.Lookup(id); ok {
		return nil, true
	}

	res := m.Match(matching.ClassQuery{ID: id, Name: name})
	if !res.Matched() {
		return nil, false
	}
	return &res, true
}

func describe(res matching.Result) string {
	return fmt.Sprintf("%s match (%s, %.2f)", res.Type, res.Strategy, res.Confidence)
}
