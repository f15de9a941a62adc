package classify_test

import (
	"testing"

	"github.com/JaimeStill/roster/internal/classify"
	"github.com/JaimeStill/roster/internal/docstore"
	"github.com/JaimeStill/roster/internal/identity"
)

func student(id, name, school, grade string) docstore.Document {
	fields := map[string]any{}
	if name != "" {
		fields["name"] = name
		fields["school"] = school
		fields["grade"] = grade
	}
	return docstore.Document{
		Ref:    docstore.Ref{Collection: "students", ID: id},
		Fields: fields,
	}
}

func find(t *testing.T, r classify.Report, id string) classify.Classification {
	t.Helper()
	for _, c := range r.Items {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("no classification for %q", id)
	return classify.Classification{}
}

func TestNumericDuplicate(t *testing.T) {
	r := classify.Classify([]docstore.Document{
		student("12345", "김철수", "서울초", "3"),
		student("김철수_서울초_3", "김철수", "서울초", "3"),
	}, classify.Options{})

	dup := find(t, r, "12345")
	if dup.Shape != identity.ShapeNumericLegacy || !dup.HasCanonicalCollision || dup.Action != classify.ActionDelete {
		t.Errorf("12345 = %+v", dup)
	}
	if dup.Target != "김철수_서울초_3" {
		t.Errorf("Target = %q", dup.Target)
	}

	keep := find(t, r, "김철수_서울초_3")
	if keep.Action != classify.ActionKeep {
		t.Errorf("canonical action = %s, want KEEP", keep.Action)
	}
}

func TestNumericWithoutCollisionIsFlagged(t *testing.T) {
	r := classify.Classify([]docstore.Document{
		student("12345", "김철수", "서울초", "3"),
	}, classify.Options{})

	c := find(t, r, "12345")
	if c.HasCanonicalCollision || c.Action != classify.ActionFlag {
		t.Errorf("12345 = %+v, want FLAG without collision", c)
	}
}

func TestWhitespaceRenameWithoutFields(t *testing.T) {
	r := classify.Classify([]docstore.Document{
		student("김철수 서울초 3", "", "", ""),
	}, classify.Options{})

	c := find(t, r, "김철수 서울초 3")
	if c.Shape != identity.ShapeWhitespaceFixable || c.HasCanonicalCollision {
		t.Fatalf("classification = %+v", c)
	}
	if c.Action != classify.ActionRename || c.Target != "김철수_서울초_3" {
		t.Errorf("action = %s target = %q", c.Action, c.Target)
	}
}

func TestWhitespaceRenamePrefersSemanticKey(t *testing.T) {
	r := classify.Classify([]docstore.Document{
		student("김철수 서울초등학교 3", "김철수", "서울초등학교", "3"),
	}, classify.Options{})

	c := find(t, r, "김철수 서울초등학교 3")
	if c.Target != "김철수_서울초_3" {
		t.Errorf("Target = %q, want semantic key", c.Target)
	}
}

func TestWhitespaceCollisionDeletes(t *testing.T) {
	r := classify.Classify([]docstore.Document{
		student("김철수 서울초 3", "", "", ""),
		student("김철수_서울초_3", "김철수", "서울초", "3"),
	}, classify.Options{})

	c := find(t, r, "김철수 서울초 3")
	if c.Action != classify.ActionDelete || !c.HasCanonicalCollision {
		t.Errorf("classification = %+v, want DELETE", c)
	}
}

func TestCanonicalSetIncludesDriftedKeys(t *testing.T) {
	r := classify.Classify([]docstore.Document{
		student("김철수_서울초_2", "김철수", "서울초", "3"),
		student("54321", "김철수", "서울초", "3"),
	}, classify.Options{})

	c := find(t, r, "54321")
	if c.Action != classify.ActionDelete || c.Target != "김철수_서울초_2" {
		t.Errorf("classification = %+v, want DELETE against drifted id", c)
	}
}

func TestRenameConflictFirstWins(t *testing.T) {
	r := classify.Classify([]docstore.Document{
		student("김철수  서울초 3", "", "", ""),
		student("김철수 서울초 3", "", "", ""),
	}, classify.Options{})

	if len(r.Filter(classify.ActionRename)) != 1 {
		t.Fatalf("renames = %v", r.Filter(classify.ActionRename))
	}
	if len(r.Conflicts) != 1 {
		t.Fatalf("conflicts = %v", r.Conflicts)
	}

	conflict := r.Conflicts[0]
	if conflict.Target != "김철수_서울초_3" || conflict.Winner == conflict.ID {
		t.Errorf("conflict = %+v", conflict)
	}
	if find(t, r, conflict.ID).Action != classify.ActionConflict {
		t.Error("losing rename should be marked CONFLICT")
	}
}

func TestShapeCounts(t *testing.T) {
	r := classify.Classify([]docstore.Document{
		student("김철수_서울초_3", "", "", ""),
		student("1234", "", "", ""),
		student("xYz", "", "", ""),
		student("이영희 휘문고 고1", "", "", ""),
	}, classify.Options{})

	for shape, want := range map[identity.IDShape]int{
		identity.ShapeValid:             1,
		identity.ShapeNumericLegacy:     1,
		identity.ShapeRandomInvalid:     1,
		identity.ShapeWhitespaceFixable: 1,
	} {
		if r.Shapes[shape] != want {
			t.Errorf("Shapes[%s] = %d, want %d", shape, r.Shapes[shape], want)
		}
	}
	if len(r.Items) != 4 {
		t.Errorf("items = %d, want 4", len(r.Items))
	}
}

func TestNoHistory(t *testing.T) {
	withArray := student("박민수_대치중_중2", "박민수", "대치중", "중2")
	withArray.Fields["enrollments"] = []any{map[string]any{"classId": "c1"}}

	withdrawn := student("최지우_서울초_3", "최지우", "서울초", "3")
	withdrawn.Fields["status"] = "퇴원"

	docs := []docstore.Document{
		student("이영희_휘문고_고1", "이영희", "휘문고", "고1"),
		student("김철수_서울초_3", "김철수", "서울초", "3"),
		withArray,
		withdrawn,
	}
	counts := map[string]int{"김철수_서울초_3": 2}

	got := classify.NoHistory(docs, counts, classify.DefaultHistoryOptions)
	if len(got) != 1 || got[0].ID != "이영희_휘문고_고1" {
		t.Errorf("NoHistory = %+v, want only 이영희", got)
	}
}
