package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// runContext derives a context for a background run from base, carrying the
// triggering request's ID so the run's log lines can be traced back to it.
func runContext(base context.Context, r *http.Request) context.Context {
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		return context.WithValue(base, middleware.RequestIDKey, reqID)
	}
	return base
}
