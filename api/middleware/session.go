package middleware

import (
	"context"
	"net/http"
)

type userContexter interface {
	WithUserContext(ctx context.Context) context.Context
}

// Session tags the request context with the signed-in user, when there is one,
// so downstream logs carry the user id.
func Session(session userContexter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithUserContext(r.Context())))
		})
	}
}
