package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/nursingcollective/cartengine/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// page scripts may forward their own id; anything unusual is replaced
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if !requestIDPattern.MatchString(reqID) {
				reqID = uuid.NewString()
			}

			w.Header().Set(requestIDHeader, reqID)

			l := logg
			if l == nil {
				l = logger.Nop()
			}
			// the id also rides on outbound cart API calls
			ctx := l.WithRequestID(r.Context(), reqID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
