package middleware

import (
	"net/http"

	"github.com/google/uuid"

	wrap "github.com/addisride/dispatch/pkg/logger/wrapper"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an id for log correlation, honoring
// one supplied by an upstream proxy.
func (m *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, requestID)

		ctx := wrap.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
