package reconcile

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/roster/internal/docstore"
	"github.com/JaimeStill/roster/internal/identity"
	"github.com/JaimeStill/roster/internal/matching"
	"github.com/JaimeStill/roster/internal/plan"
	"github.com/JaimeStill/roster/internal/sources"
)

const dateLayout = "2006-01-02"

// rowID derives a stable document id from the source and line, so importing
// the same source twice plans nothing the second time.
func rowID(sourceID string, line int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "roster:%s#%d", sourceID, line)).String()
}

func rowSchools(rows []sources.Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.School)
	}
	return out
}

func rowErrors(pv *Preview, errs []sources.RowError) {
	for _, e := range errs {
		pv.skip(e.Line, "", "%s", e.Reason)
	}
}

func query(r sources.Row) matching.PersonQuery {
	return matching.PersonQuery{
		ID:     r.StudentID,
		Name:   r.Name,
		School: r.School,
		Grade:  r.Grade,
		Phone:  r.Phone,
	}
}

// importConsultations matches each row to a student by name and phone and
// plans one consultation CREATE per row. A row matching nobody gets a
// placeholder student when the policy allows it; later rows for the same
// person reuse that placeholder.
func importConsultations(snap *Snapshot, req Request, opts Options) *Preview {
	rows := req.Rows.Rows
	norm, schools := snap.Normalizer(rowSchools(rows)...)
	students := matching.NewStudentMatcher(snap.people(), norm, req.StudentOverrides)

	existing := make(map[string]bool, len(snap.Consultations))
	for _, d := range snap.Consultations {
		existing[d.ID] = true
	}
	known := snap.students()
	placeholders := make(map[string]bool)

	b := plan.NewBuilder(opts.planOptions())
	pv := &Preview{Job: JobConsultations, SchoolRewrites: schools.Rewrites()}
	rowErrors(pv, req.Rows.Errors)

	for _, r := range rows {
		id := rowID(req.SourceID, r.Line)
		if existing[id] {
			pv.skip(r.Line, id, "already imported")
			continue
		}

		res := students.Match(query(r))
		consultation := docstore.Ref{Collection: opts.Collections.Consultations, ID: id}

		if res.Matched() {
			pv.Matches = append(pv.Matches, res)
			b.Create(consultation, consultationPayload(r, res.EntityID, req.SourceID), describe(res))
			continue
		}

		if len(res.Ambiguous) > 0 {
			pv.skip(r.Line, res.SourceKey, "ambiguous student: %s", strings.Join(res.Ambiguous, ", "))
			continue
		}
		if !opts.CreatePlaceholders {
			pv.skip(r.Line, res.SourceKey, "no student matches %q", r.Name)
			continue
		}

		key, ok := placeholderKey(norm, r)
		if !ok {
			pv.skip(r.Line, res.SourceKey, "placeholder needs a name and school")
			continue
		}

		if _, stored := known[key]; stored || placeholders[key] {
			b.Create(consultation, consultationPayload(r, key, req.SourceID), "student placeholder "+key)
			continue
		}

		placeholders[key] = true
		student := docstore.Ref{Collection: opts.Collections.Students, ID: key}
		b.Group(func(add func(plan.Item)) {
			add(plan.Item{
				Operation:  plan.OpCreate,
				Collection: student.Collection,
				TargetID:   student.ID,
				Payload:    placeholderPayload(norm, r, req.SourceID),
				Reason:     "placeholder for unmatched consultation student",
			})
			add(plan.Item{
				Operation:  plan.OpCreate,
				Collection: consultation.Collection,
				TargetID:   consultation.ID,
				Payload:    consultationPayload(r, key, req.SourceID),
				Reason:     "student placeholder " + key,
			})
		})
	}

	return pv.finish(b.Build())
}

func placeholderKey(norm *identity.Normalizer, r sources.Row) (string, bool) {
	if identity.NormalizeName(r.Name) == "" || norm.School(r.School) == "" {
		return "", false
	}
	return norm.SemanticKey(r.Name, r.School, r.Grade), true
}

func placeholderPayload(norm *identity.Normalizer, r sources.Row, sourceID string) map[string]any {
	p := map[string]any{
		fieldName:     identity.NormalizeName(r.Name),
		fieldSchool:   norm.School(r.School),
		fieldGrade:    identity.NormalizeGrade(r.Grade).String(),
		fieldStatus:   "placeholder",
		"createdFrom": sourceID,
	}
	if phone := identity.NormalizePhone(r.Phone); phone != "" {
		p["parentPhone"] = phone
	}
	return p
}

func consultationPayload(r sources.Row, studentID, sourceID string) map[string]any {
	p := map[string]any{
		fieldStudentID: studentID,
		"studentName":  r.Name,
		"title":        r.Title,
		"notes":        r.Notes,
		"sourceId":     sourceID,
		"sourceLine":   r.Line,
	}
	if !r.Date.IsZero() {
		p["date"] = r.Date.Format(dateLayout)
	}
	if r.Seq != "" {
		p["seq"] = r.Seq
	}
	return p
}

// importEnrollments matches each row to a student and a class and plans an
// enrollment CREATE under the student. Rows whose student already holds an
// enrollment in the matched class are skipped.
func importEnrollments(snap *Snapshot, req Request, opts Options) *Preview {
	rows := req.Rows.Rows
	norm, schools := snap.Normalizer(rowSchools(rows)...)
	students := matching.NewStudentMatcher(snap.people(), norm, req.StudentOverrides)
	classes := matching.NewClassMatcher(candidates(snap.Classes), matching.ClassOptions{
		Abbreviations: opts.Abbreviations,
		Overrides:     req.ClassOverrides,
	})

	enrolled := make(map[string]bool)
	for studentID, docs := range snap.Enrollments {
		for _, d := range docs {
			enrolled[studentID+"|"+d.String(fieldClassID)] = true
		}
	}

	b := plan.NewBuilder(opts.planOptions())
	pv := &Preview{Job: JobEnrollments, SchoolRewrites: schools.Rewrites()}
	rowErrors(pv, req.Rows.Errors)

	for _, r := range rows {
		student := students.Match(query(r))
		if !student.Matched() {
			if len(student.Ambiguous) > 0 {
				pv.skip(r.Line, student.SourceKey, "ambiguous student: %s", strings.Join(student.Ambiguous, ", "))
			} else {
				pv.skip(r.Line, student.SourceKey, "no student matches %q", r.Name)
			}
			continue
		}

		class := classes.Match(matching.ClassQuery{ID: r.ClassID, Name: r.Class})
		if !class.Matched() {
			pv.skip(r.Line, class.SourceKey, "no class matches %q", r.Class)
			continue
		}
		pv.Matches = append(pv.Matches, student, class)

		pair := student.EntityID + "|" + class.EntityID
		if enrolled[pair] {
			pv.skip(r.Line, pair, "already enrolled in %s", class.EntityName)
			continue
		}
		enrolled[pair] = true

		parent := docstore.Ref{Collection: opts.Collections.Students, ID: student.EntityID}
		ref := docstore.Ref{Collection: parent.Sub(opts.Collections.Enrollments), ID: rowID(req.SourceID, r.Line)}

		payload := map[string]any{
			fieldStudentID: student.EntityID,
			fieldClassID:   class.EntityID,
			fieldClassName: class.EntityName,
			"sourceId":     req.SourceID,
			"sourceLine":   r.Line,
		}
		if !r.Date.IsZero() {
			payload["startDate"] = r.Date.Format(dateLayout)
		}

		b.Create(ref, payload, describe(class))
	}

	return pv.finish(b.Build())
}
