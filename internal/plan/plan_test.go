package plan_test

import (
	"testing"

	"github.com/JaimeStill/roster/internal/classify"
	"github.com/JaimeStill/roster/internal/docstore"
	"github.com/JaimeStill/roster/internal/plan"
)

func doc(collection, id string, fields map[string]any) docstore.Document {
	return docstore.Document{Ref: docstore.Ref{Collection: collection, ID: id}, Fields: fields}
}

func children(parent string, n int) []docstore.Document {
	out := make([]docstore.Document, n)
	for i := range n {
		out[i] = doc("students/"+parent+"/enrollments", string(rune('a'+i)), map[string]any{"classId": "c1"})
	}
	return out
}

func TestDeleteCascade(t *testing.T) {
	for _, n := range []int{0, 1, 3} {
		b := plan.NewBuilder(plan.DefaultOptions)
		b.Delete(docstore.Ref{Collection: "students", ID: "12345"}, children("12345", n), nil, "", "dup")
		p := b.Build()

		if len(p.Items) != n+1 {
			t.Fatalf("n=%d: items = %d, want %d", n, len(p.Items), n+1)
		}

		group := p.Items[0].GroupID
		for i, item := range p.Items {
			if item.Operation != plan.OpDelete || item.GroupID != group {
				t.Errorf("n=%d: item %d = %+v", n, i, item)
			}
		}

		last := p.Items[n]
		if last.Collection != "students" || last.TargetID != "12345" {
			t.Errorf("n=%d: parent delete must come last, got %s", n, last)
		}
		for _, item := range p.Items[:n] {
			if item.Collection != "students/12345/enrollments" {
				t.Errorf("child delete in %s", item.Collection)
			}
		}
	}
}

func TestDeleteRepointsReferences(t *testing.T) {
	b := plan.NewBuilder(plan.DefaultOptions)
	refs := []docstore.Document{
		doc("consultations", "k1", map[string]any{"studentId": "12345"}),
		doc("consultations", "k2", map[string]any{"studentId": "12345"}),
	}
	b.Delete(docstore.Ref{Collection: "students", ID: "12345"}, children("12345", 1), refs, "김철수_서울초_3", "dup")
	p := b.Build()

	counts := p.Count()
	if counts[plan.OpMerge] != 2 || counts[plan.OpDelete] != 2 {
		t.Fatalf("counts = %v", counts)
	}

	group := p.Items[0].GroupID
	for _, item := range p.Items {
		if item.GroupID != group {
			t.Errorf("%s outside the delete group", item)
		}
	}
	for _, merge := range p.Items[:2] {
		if merge.Operation != plan.OpMerge || merge.Collection != "consultations" {
			t.Fatalf("references must be re-pointed before deletes, got %s", merge)
		}
		if merge.Payload["studentId"] != "김철수_서울초_3" || merge.Payload["previousStudentId"] != "12345" {
			t.Errorf("payload = %v", merge.Payload)
		}
	}
	if last := p.Items[len(p.Items)-1]; last.TargetID != "12345" {
		t.Errorf("parent delete must come last, got %s", last)
	}
}

func TestMoveOrdering(t *testing.T) {
	b := plan.NewBuilder(plan.DefaultOptions)
	src := doc("students", "김철수 서울초 3", map[string]any{"name": "김철수"})
	refs := []docstore.Document{doc("consultations", "k1", map[string]any{"studentId": "김철수 서울초 3"})}

	if !b.Move(src, "김철수_서울초_3", children("김철수 서울초 3", 2), refs, "rename") {
		t.Fatal("Move rejected")
	}
	p := b.Build()

	want := []struct {
		op         plan.Operation
		collection string
	}{
		{plan.OpMove, "students"},
		{plan.OpCreate, "students/김철수_서울초_3/enrollments"},
		{plan.OpCreate, "students/김철수_서울초_3/enrollments"},
		{plan.OpMerge, "consultations"},
		{plan.OpDelete, "students/김철수 서울초 3/enrollments"},
		{plan.OpDelete, "students/김철수 서울초 3/enrollments"},
	}
	if len(p.Items) != len(want) {
		t.Fatalf("items = %d, want %d", len(p.Items), len(want))
	}
	for i, w := range want {
		if p.Items[i].Operation != w.op || p.Items[i].Collection != w.collection {
			t.Errorf("item %d = %s, want %s %s", i, p.Items[i], w.op, w.collection)
		}
	}

	move := p.Items[0]
	if move.SourceID == move.TargetID || move.SourceID != "김철수 서울초 3" {
		t.Errorf("move = %+v", move)
	}

	repoint := p.Items[3].Payload
	if repoint["studentId"] != "김철수_서울초_3" || repoint["previousStudentId"] != "김철수 서울초 3" {
		t.Errorf("re-point payload = %v", repoint)
	}
}

func TestMoveWritesDeferSourceDelete(t *testing.T) {
	item := plan.Item{Operation: plan.OpMove, Collection: "students", SourceID: "a b", TargetID: "a_b"}

	writes, deferred := item.Writes()
	if len(writes) != 1 || writes[0].Op != docstore.OpMerge || writes[0].Ref.ID != "a_b" {
		t.Errorf("writes = %+v", writes)
	}
	if len(deferred) != 1 || deferred[0].Op != docstore.OpDelete || deferred[0].Ref.ID != "a b" {
		t.Errorf("deferred = %+v", deferred)
	}
	if item.WriteCount() != 2 {
		t.Errorf("WriteCount = %d", item.WriteCount())
	}
}

func TestMoveConflicts(t *testing.T) {
	b := plan.NewBuilder(plan.DefaultOptions)

	if b.Move(doc("students", "same", nil), "same", nil, nil, "") {
		t.Error("source == target must be rejected")
	}
	if !b.Move(doc("students", "a b", nil), "a_b", nil, nil, "") {
		t.Error("first move rejected")
	}
	if b.Move(doc("students", "a  b", nil), "a_b", nil, nil, "") {
		t.Error("second move to same target must be rejected")
	}

	p := b.Build()
	if len(p.Items) != 1 || len(p.Conflicts) != 2 {
		t.Errorf("items = %d conflicts = %d", len(p.Items), len(p.Conflicts))
	}
	for _, item := range p.Items {
		if item.Operation == plan.OpMove && item.SourceID == item.TargetID {
			t.Errorf("executable move with source == target: %s", item)
		}
	}
}

func TestPromote(t *testing.T) {
	b := plan.NewBuilder(plan.DefaultOptions)
	element := map[string]any{"classId": "c1", "days": []any{"월"}}
	parent := docstore.Ref{Collection: "students", ID: "김철수_서울초_3"}

	b.Promote(parent, "enrollments", element, "e1", map[string]any{"classId": "c1"})
	p := b.Build()

	if len(p.Items) != 2 || p.Items[0].GroupID != p.Items[1].GroupID {
		t.Fatalf("items = %+v", p.Items)
	}
	if p.Items[0].Operation != plan.OpCreate || p.Items[0].Collection != "students/김철수_서울초_3/enrollments" {
		t.Errorf("create = %s", p.Items[0])
	}

	merge := p.Items[1]
	removed := merge.ArrayRemove["enrollments"]
	if merge.Operation != plan.OpMerge || len(removed) != 1 || !docstore.Equal(removed[0], element) {
		t.Errorf("merge = %+v", merge)
	}
}

func TestCleanupScenarios(t *testing.T) {
	t.Run("numeric duplicate", func(t *testing.T) {
		docs := []docstore.Document{
			doc("students", "12345", map[string]any{"name": "김철수", "school": "서울초", "grade": "3"}),
			doc("students", "김철수_서울초_3", map[string]any{"name": "김철수", "school": "서울초", "grade": "3"}),
		}
		report := classify.Classify(docs, classify.Options{})
		snap := snapshot(docs)
		snap.References["12345"] = []docstore.Document{doc("consultations", "k1", map[string]any{"studentId": "12345"})}
		p := plan.Cleanup(report, snap, plan.DefaultOptions)

		if len(p.Items) != 2 {
			t.Fatalf("items = %v", p.Items)
		}
		if p.Items[0].Operation != plan.OpMerge || p.Items[0].Payload["studentId"] != "김철수_서울초_3" {
			t.Errorf("reference merge = %s", p.Items[0])
		}
		if p.Items[1].Operation != plan.OpDelete || p.Items[1].TargetID != "12345" {
			t.Errorf("item = %s", p.Items[1])
		}
		for _, item := range p.Items {
			if item.TargetID == "김철수_서울초_3" {
				t.Errorf("canonical document touched: %s", item)
			}
		}
	})

	t.Run("whitespace rename", func(t *testing.T) {
		docs := []docstore.Document{doc("students", "김철수 서울초 3", nil)}
		snap := snapshot(docs)
		snap.Children["김철수 서울초 3"] = children("김철수 서울초 3", 1)

		p := plan.Cleanup(classify.Classify(docs, classify.Options{}), snap, plan.DefaultOptions)

		counts := p.Count()
		if counts[plan.OpMove] != 1 || counts[plan.OpCreate] != 1 || counts[plan.OpDelete] != 1 {
			t.Errorf("counts = %v", counts)
		}
		if p.Items[0].SourceID != "김철수 서울초 3" || p.Items[0].TargetID != "김철수_서울초_3" {
			t.Errorf("move = %s", p.Items[0])
		}
	})

	t.Run("rename conflict reported", func(t *testing.T) {
		docs := []docstore.Document{
			doc("students", "김철수 서울초 3", nil),
			doc("students", "김철수  서울초 3", nil),
		}
		p := plan.Cleanup(classify.Classify(docs, classify.Options{}), snapshot(docs), plan.DefaultOptions)

		if p.Count()[plan.OpMove] != 1 || len(p.Conflicts) != 1 {
			t.Errorf("moves = %d conflicts = %v", p.Count()[plan.OpMove], p.Conflicts)
		}
	})
}

func TestGrouped(t *testing.T) {
	b := plan.NewBuilder(plan.DefaultOptions)
	b.Delete(docstore.Ref{Collection: "students", ID: "1111"}, children("1111", 2), nil, "", "")
	b.Merge(docstore.Ref{Collection: "classes", ID: "c1"}, map[string]any{"x": 1}, "")

	groups := b.Build().Grouped()
	if len(groups) != 2 || len(groups[0]) != 3 || len(groups[1]) != 1 {
		t.Errorf("groups = %v", groups)
	}
}

func snapshot(docs []docstore.Document) plan.Snapshot {
	s := plan.Snapshot{
		Collection: "students",
		Documents:  make(map[string]docstore.Document),
		Children:   make(map[string][]docstore.Document),
		References: make(map[string][]docstore.Document),
	}
	for _, d := range docs {
		s.Documents[d.ID] = d
	}
	return s
}
