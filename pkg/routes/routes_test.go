package routes_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/roster/pkg/routes"
)

func reply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body+":"+r.PathValue("id"))
	}
}

func TestRegisterNestedGroups(t *testing.T) {
	mux := http.NewServeMux()
	routes.Register(mux, routes.Group{
		Prefix: "/runs",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}", Handler: reply("find")},
			{Method: "POST", Pattern: "/{id}/execute", Handler: reply("execute")},
		},
		Children: []routes.Group{{
			Prefix: "/{id}/items",
			Routes: []routes.Route{{Method: "GET", Pattern: "", Handler: reply("items")}},
		}},
	})

	tests := []struct {
		method, path, want string
		code               int
	}{
		{"GET", "/runs/42", "find:42", http.StatusOK},
		{"POST", "/runs/42/execute", "execute:42", http.StatusOK},
		{"GET", "/runs/42/items", "items:42", http.StatusOK},
		{"DELETE", "/runs/42", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
			if tt.want != "" && rec.Body.String() != tt.want {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.want)
			}
		})
	}
}
