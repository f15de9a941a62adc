// Package middleware provides an ordered middleware stack plus request
// logging and CORS.
package middleware

import "net/http"

// Stack is an ordered list of middleware. The first added is outermost.
type Stack struct {
	mws []func(http.Handler) http.Handler
}

// Use appends mw to the stack.
func (s *Stack) Use(mw func(http.Handler) http.Handler) {
	s.mws = append(s.mws, mw)
}

// Apply wraps handler with every middleware in the stack.
func (s *Stack) Apply(handler http.Handler) http.Handler {
	for i := len(s.mws) - 1; i >= 0; i-- {
		handler = s.mws[i](handler)
	}
	return handler
}
