package execute_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/JaimeStill/roster/internal/classify"
	"github.com/JaimeStill/roster/internal/docstore"
	"github.com/JaimeStill/roster/internal/execute"
	"github.com/JaimeStill/roster/internal/plan"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func deletes(n int) plan.Plan {
	b := plan.NewBuilder(plan.DefaultOptions)
	for i := range n {
		b.Delete(docstore.Ref{Collection: "students", ID: fmt.Sprintf("%05d", i)}, nil, "test")
	}
	return b.Build()
}

func seeded(t *testing.T, n int) *docstore.Memory {
	t.Helper()
	m := docstore.NewMemory()
	for i := range n {
		err := m.Seed(docstore.Document{Ref: docstore.Ref{Collection: "students", ID: fmt.Sprintf("%05d", i)}})
		if err != nil {
			t.Fatal(err)
		}
	}
	return m
}

func TestChunkedPartialFailure(t *testing.T) {
	store := seeded(t, 1000)
	store.FailCommit(2, errors.New("batch rejected"))

	var progress []execute.Progress
	ex := execute.New(store, discard(), execute.Options{
		BatchSize: 400,
		Progress:  func(p execute.Progress) { progress = append(progress, p) },
	})

	r := ex.Run(context.Background(), deletes(1000))

	if r.Chunks != 3 {
		t.Fatalf("chunks = %d, want 3", r.Chunks)
	}
	if r.Succeeded != 600 || r.Failed != 400 || r.Processed != 1000 || r.Skipped != 0 {
		t.Errorf("result = %+v", r)
	}
	if len(r.Errors) != 1 || r.Errors[0].Chunk != 2 || len(r.Errors[0].Items) != 400 {
		t.Errorf("errors = %+v", r.Errors)
	}

	if store.Count("students") != 400 {
		t.Errorf("remaining = %d, want the 400 items of chunk 2", store.Count("students"))
	}
	if _, err := store.Get(context.Background(), docstore.Ref{Collection: "students", ID: "00400"}); err != nil {
		t.Errorf("first item of failed chunk should survive: %v", err)
	}

	wantProcessed := []int{400, 800, 1000}
	if len(progress) != 3 {
		t.Fatalf("progress calls = %d, want 3", len(progress))
	}
	for i, p := range progress {
		if p.Processed != wantProcessed[i] || p.Total != 1000 {
			t.Errorf("progress[%d] = %+v", i, p)
		}
	}
}

func TestGroupsStayInOneBatch(t *testing.T) {
	b := plan.NewBuilder(plan.DefaultOptions)
	kids := make([]docstore.Document, 3)
	for i := range kids {
		kids[i] = docstore.Document{Ref: docstore.Ref{Collection: "students/p/enrollments", ID: fmt.Sprint(i)}}
	}
	b.Delete(docstore.Ref{Collection: "students", ID: "a"}, nil, "")
	b.Delete(docstore.Ref{Collection: "students", ID: "p"}, kids, "")

	store := docstore.NewMemory()
	r := execute.New(store, discard(), execute.Options{BatchSize: 4}).Run(context.Background(), b.Build())

	if r.Chunks != 2 {
		t.Errorf("chunks = %d, want 2 (the 4-write group must not straddle)", r.Chunks)
	}
	if r.Succeeded != 5 {
		t.Errorf("succeeded = %d", r.Succeeded)
	}
}

func TestOversizedGroupSplitsAndAborts(t *testing.T) {
	b := plan.NewBuilder(plan.DefaultOptions)
	kids := make([]docstore.Document, 5)
	for i := range kids {
		kids[i] = docstore.Document{Ref: docstore.Ref{Collection: "students/a b/enrollments", ID: fmt.Sprint(i)}}
	}
	b.Move(docstore.Document{Ref: docstore.Ref{Collection: "students", ID: "a b"}}, "a_b", kids, nil, "")
	p := b.Build()

	store := docstore.NewMemory()
	store.FailCommit(1, errors.New("boom"))
	r := execute.New(store, discard(), execute.Options{BatchSize: 4}).Run(context.Background(), p)

	if r.Chunks != 3 {
		t.Fatalf("chunks = %d, want 3", r.Chunks)
	}
	if store.Commits() != 1 {
		t.Errorf("commits = %d; later chunks of a failed group must not be sent", store.Commits())
	}
	if r.Failed != len(p.Items) || r.Succeeded != 0 {
		t.Errorf("result = %+v", r)
	}
	if len(r.Errors) != 3 || r.Errors[1].Error != execute.ErrGroupAborted.Error() {
		t.Errorf("errors = %+v", r.Errors)
	}
}

func TestCancellationSkipsRemaining(t *testing.T) {
	store := seeded(t, 10)
	ctx, cancel := context.WithCancel(context.Background())

	ex := execute.New(store, discard(), execute.Options{
		BatchSize: 4,
		Progress: func(p execute.Progress) {
			if p.Chunk == 1 {
				cancel()
			}
		},
	})
	r := ex.Run(ctx, deletes(10))

	if !r.Canceled || r.Succeeded != 4 || r.Skipped != 6 {
		t.Errorf("result = %+v", r)
	}
	if store.Count("students") != 6 {
		t.Errorf("remaining = %d, want 6", store.Count("students"))
	}
}

func TestMoveLeavesExactlyOneDocument(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()
	src := docstore.Document{
		Ref:    docstore.Ref{Collection: "students", ID: "김철수 서울초 3"},
		Fields: map[string]any{"name": "김철수", "school": "서울초", "grade": "3"},
	}
	kid := docstore.Document{
		Ref:    docstore.Ref{Collection: src.Sub("enrollments"), ID: "e1"},
		Fields: map[string]any{"classId": "c1"},
	}
	ref := docstore.Document{
		Ref:    docstore.Ref{Collection: "consultations", ID: "k1"},
		Fields: map[string]any{"studentId": src.ID, "title": "상담"},
	}
	if err := store.Seed(src, kid, ref); err != nil {
		t.Fatal(err)
	}

	b := plan.NewBuilder(plan.DefaultOptions)
	b.Move(src, "김철수_서울초_3", []docstore.Document{kid}, []docstore.Document{ref}, "rename")
	r := execute.New(store, discard(), execute.Options{}).Run(ctx, b.Build())
	if r.Failed != 0 {
		t.Fatalf("result = %+v", r)
	}

	if store.Count("students") != 1 {
		t.Errorf("students = %d, want exactly one", store.Count("students"))
	}
	if _, err := store.Get(ctx, docstore.Ref{Collection: "students", ID: "김철수_서울초_3"}); err != nil {
		t.Errorf("target missing: %v", err)
	}
	if store.Count("students/김철수_서울초_3/enrollments") != 1 || store.Count(src.Sub("enrollments")) != 0 {
		t.Error("children not moved")
	}

	k, _ := store.Get(ctx, ref.Ref)
	if k.String("studentId") != "김철수_서울초_3" || k.String("previousStudentId") != src.ID || k.String("title") != "상담" {
		t.Errorf("consultation = %v", k.Fields)
	}
}

func TestSecondRunPlansNothing(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()
	err := store.Seed(
		docstore.Document{Ref: docstore.Ref{Collection: "students", ID: "12345"}, Fields: map[string]any{"name": "김철수", "school": "서울초", "grade": "3"}},
		docstore.Document{Ref: docstore.Ref{Collection: "students", ID: "김철수_서울초_3"}, Fields: map[string]any{"name": "김철수", "school": "서울초", "grade": "3"}},
		docstore.Document{Ref: docstore.Ref{Collection: "students", ID: "이영희 휘문고 고1"}, Fields: map[string]any{"name": "이영희", "school": "휘문고", "grade": "고1"}},
	)
	if err != nil {
		t.Fatal(err)
	}

	cleanup := func() plan.Plan {
		docs, err := store.Scan(ctx, "students")
		if err != nil {
			t.Fatal(err)
		}
		snap := plan.Snapshot{
			Collection: "students",
			Documents:  make(map[string]docstore.Document),
		}
		for _, d := range docs {
			snap.Documents[d.ID] = d
		}
		return plan.Cleanup(classify.Classify(docs, classify.Options{}), snap, plan.DefaultOptions)
	}

	first := cleanup()
	if first.Empty() {
		t.Fatal("first plan should not be empty")
	}
	if r := execute.New(store, discard(), execute.Options{}).Run(ctx, first); r.Failed != 0 {
		t.Fatalf("first run = %+v", r)
	}

	if second := cleanup(); !second.Empty() {
		t.Errorf("second plan = %v, want empty", second.Items)
	}
}
