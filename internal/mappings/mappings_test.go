package mappings_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/roster/internal/identity"
	"github.com/JaimeStill/roster/internal/mappings"
	"github.com/JaimeStill/roster/internal/matching"
	"github.com/JaimeStill/roster/pkg/pagination"
)

type mockSystem struct {
	listFn      func(ctx context.Context, page pagination.PageRequest, filters mappings.Filters) (*pagination.PageResult[mappings.Mapping], error)
	findFn      func(ctx context.Context, id uuid.UUID) (*mappings.Mapping, error)
	createFn    func(ctx context.Context, cmd mappings.CreateCommand) (*mappings.Mapping, error)
	updateFn    func(ctx context.Context, id uuid.UUID, cmd mappings.UpdateCommand) (*mappings.Mapping, error)
	deleteFn    func(ctx context.Context, id uuid.UUID) error
	overridesFn func(ctx context.Context, kind mappings.Kind) (matching.Overrides, error)
}

func (m *mockSystem) Handler() *mappings.Handler {
	return newTestHandler(m)
}

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, filters mappings.Filters) (*pagination.PageResult[mappings.Mapping], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*mappings.Mapping, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) Create(ctx context.Context, cmd mappings.CreateCommand) (*mappings.Mapping, error) {
	return m.createFn(ctx, cmd)
}

func (m *mockSystem) Update(ctx context.Context, id uuid.UUID, cmd mappings.UpdateCommand) (*mappings.Mapping, error) {
	return m.updateFn(ctx, id, cmd)
}

func (m *mockSystem) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFn(ctx, id)
}

func (m *mockSystem) Overrides(ctx context.Context, kind mappings.Kind) (matching.Overrides, error) {
	return m.overridesFn(ctx, kind)
}

func newTestHandler(sys mappings.System) *mappings.Handler {
	return mappings.NewHandler(
		sys,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
	)
}

func setupMux(h *mappings.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		pattern := route.Method + " " + group.Prefix + route.Pattern
		mux.HandleFunc(pattern, route.Handler)
	}
	return mux
}

func sampleMapping() mappings.Mapping {
	return mappings.Mapping{
		ID:        uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"),
		Kind:      mappings.KindClass,
		SourceKey: "GINA 월목",
		TargetID:  "class-gina",
	}
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"class", "student", " class "} {
		if _, err := mappings.ParseKind(s); err != nil {
			t.Errorf("ParseKind(%q) error = %v", s, err)
		}
	}
	if _, err := mappings.ParseKind("staff"); !errors.Is(err, mappings.ErrInvalidKind) {
		t.Errorf("ParseKind(staff) error = %v", err)
	}
}

func TestOverrides(t *testing.T) {
	table := mappings.Overrides([]mappings.Mapping{
		{SourceKey: "GINA 월목", TargetID: "c1"},
		{SourceKey: "  ", TargetID: "ignored"},
		{SourceKey: "gina월목", TargetID: "c2"},
	})

	if len(table) != 1 {
		t.Fatalf("table = %v", table)
	}
	if id, ok := table.Lookup("Gina 월 목"); !ok || id != "c2" {
		t.Errorf("Lookup = %q, %v; later mapping should win", id, ok)
	}
}

func TestOverridesNormalizeStudentKeys(t *testing.T) {
	table := mappings.Overrides([]mappings.Mapping{
		{Kind: mappings.KindStudent, SourceKey: "김 철수_서울초등학교_3학년", TargetID: "s1"},
		{Kind: mappings.KindStudent, SourceKey: "12345", TargetID: "s2"},
		{Kind: mappings.KindClass, SourceKey: "Gina_월목", TargetID: "c1"},
	})

	tests := []struct {
		key  string
		want string
	}{
		{identity.BuildSemanticKey("김철수", "서울초", "3"), "s1"},
		{"12345", "s2"},
		{"gina_월목", "c1"},
	}

	for _, tt := range tests {
		if id, ok := table.Lookup(tt.key); !ok || id != tt.want {
			t.Errorf("Lookup(%q) = %q, %v; want %q", tt.key, id, ok, tt.want)
		}
	}
}

func TestStudentOverrideReachesMatcher(t *testing.T) {
	pool := []matching.Person{
		{ID: "s1", Name: "김철수", School: "서울초", Grade: "3"},
		{ID: "s2", Name: "김철수", School: "서울초", Grade: "4"},
	}
	table := mappings.Overrides([]mappings.Mapping{
		{Kind: mappings.KindStudent, SourceKey: "김철수_서울초등학교_3학년", TargetID: "s2"},
	})

	r := matching.NewStudentMatcher(pool, nil, table).Match(matching.PersonQuery{Name: "김 철수", School: "서울초", Grade: "3"})
	if r.EntityID != "s2" || r.Strategy != matching.StrategyManual {
		t.Errorf("Match = %+v, want manual override to s2", r)
	}
}

func TestHandlerCreate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"created", `{"kind":"class","source_key":"GINA 월목","target_id":"class-gina"}`, nil, http.StatusCreated},
		{"malformed body", `{`, nil, http.StatusBadRequest},
		{"invalid kind", `{"kind":"staff","source_key":"a","target_id":"b"}`, mappings.ErrInvalidKind, http.StatusBadRequest},
		{"duplicate", `{"kind":"class","source_key":"a","target_id":"b"}`, mappings.ErrDuplicate, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := &mockSystem{
				createFn: func(_ context.Context, cmd mappings.CreateCommand) (*mappings.Mapping, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					m := sampleMapping()
					m.SourceKey = cmd.SourceKey
					return &m, nil
				},
			}

			rec := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/mappings", bytes.NewBufferString(tt.body))
			setupMux(sys.Handler()).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if tt.wantStatus == http.StatusCreated {
				var got mappings.Mapping
				if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
					t.Fatal(err)
				}
				if got.SourceKey != "GINA 월목" {
					t.Errorf("source_key = %q", got.SourceKey)
				}
			}
		})
	}
}

func TestHandlerFindAndDelete(t *testing.T) {
	m := sampleMapping()
	sys := &mockSystem{
		findFn: func(_ context.Context, id uuid.UUID) (*mappings.Mapping, error) {
			if id != m.ID {
				return nil, mappings.ErrNotFound
			}
			return &m, nil
		},
		deleteFn: func(_ context.Context, id uuid.UUID) error {
			if id != m.ID {
				return mappings.ErrNotFound
			}
			return nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	tests := []struct {
		method, path string
		want         int
	}{
		{"GET", "/mappings/" + m.ID.String(), http.StatusOK},
		{"GET", "/mappings/" + uuid.NewString(), http.StatusNotFound},
		{"GET", "/mappings/not-a-uuid", http.StatusBadRequest},
		{"DELETE", "/mappings/" + m.ID.String(), http.StatusNoContent},
		{"DELETE", "/mappings/" + uuid.NewString(), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
