package query_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/JaimeStill/roster/pkg/query"
)

func runsProjection() *query.ProjectionMap {
	return query.NewProjectionMap("public", "runs", "r").
		Project("id", "ID").
		Project("job", "Job").
		Project("status", "Status").
		Project("created_at", "CreatedAt")
}

const selectRuns = "SELECT r.id, r.job, r.status, r.created_at FROM public.runs r"

func TestParseSortFields(t *testing.T) {
	tests := []struct {
		in   string
		want []query.SortField
	}{
		{"", nil},
		{"Job", []query.SortField{{Field: "Job"}}},
		{"Job,-CreatedAt", []query.SortField{{Field: "Job"}, {Field: "CreatedAt", Descending: true}}},
		{" , -Status ,", []query.SortField{{Field: "Status", Descending: true}}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := query.ParseSortFields(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseSortFields(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestProjectionColumn(t *testing.T) {
	p := runsProjection()

	if got := p.Column("Status"); got != "r.status" {
		t.Errorf("Column(Status) = %s", got)
	}
	if got := p.Column("unmapped"); got != "unmapped" {
		t.Errorf("Column(unmapped) = %s", got)
	}
	if p.Has("unmapped") {
		t.Error("Has(unmapped) = true")
	}
}

func TestBuildWithoutConditions(t *testing.T) {
	q, args := query.NewBuilder(runsProjection()).Build()
	if q != selectRuns {
		t.Errorf("sql = %s", q)
	}
	if len(args) != 0 {
		t.Errorf("args = %v", args)
	}
}

func TestBuildNumbersPlaceholders(t *testing.T) {
	job := "cleanup"
	search := "canceled"
	var status *string

	q, args := query.
		NewBuilder(runsProjection(), query.SortField{Field: "CreatedAt", Descending: true}).
		WhereEquals("Job", &job).
		WhereEquals("Status", status).
		WhereSearch(&search, "Job", "Status").
		Build()

	want := selectRuns +
		" WHERE r.job = $1 AND (r.job::text ILIKE $2 OR r.status::text ILIKE $2)" +
		" ORDER BY r.created_at DESC"
	if q != want {
		t.Errorf("sql:\n got %s\nwant %s", q, want)
	}
	if len(args) != 2 || args[1] != "%canceled%" {
		t.Errorf("args = %v", args)
	}
}

func TestBuildCountAndPageShareArgs(t *testing.T) {
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	qb := query.
		NewBuilder(runsProjection(), query.SortField{Field: "CreatedAt"}).
		WhereSince("CreatedAt", &since)

	countSQL, countArgs := qb.BuildCount()
	if countSQL != "SELECT COUNT(*) FROM public.runs r WHERE r.created_at >= $1" {
		t.Errorf("count sql = %s", countSQL)
	}

	pageSQL, pageArgs := qb.BuildPage(3, 20)
	if pageSQL != selectRuns+" WHERE r.created_at >= $1 ORDER BY r.created_at ASC LIMIT 20 OFFSET 40" {
		t.Errorf("page sql = %s", pageSQL)
	}
	if !reflect.DeepEqual(countArgs, pageArgs) {
		t.Errorf("args differ: %v vs %v", countArgs, pageArgs)
	}
}

func TestOrderByFieldsDropsUnmapped(t *testing.T) {
	q, _ := query.
		NewBuilder(runsProjection(), query.SortField{Field: "CreatedAt"}).
		OrderByFields([]query.SortField{{Field: "r.id; DROP TABLE runs"}, {Field: "Job", Descending: true}}).
		Build()

	if q != selectRuns+" ORDER BY r.job DESC" {
		t.Errorf("sql = %s", q)
	}
}

func TestBuildSingle(t *testing.T) {
	job := "cleanup"
	q, args := query.NewBuilder(runsProjection()).
		WhereEquals("Job", &job).
		BuildSingle("ID", "abc")

	if q != selectRuns+" WHERE r.id = $1" {
		t.Errorf("sql = %s", q)
	}
	if len(args) != 1 || args[0] != "abc" {
		t.Errorf("args = %v", args)
	}
}
