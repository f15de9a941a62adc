package routes

import "net/http"

// Route is one method and path pattern relative to its group prefix.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}
