package middleware

import (
	"fmt"
	"net/http"
)

func (m *Middleware) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				w.Header().Set("Connection", "close")
				m.log.Error(r.Context(), "panic recovered", fmt.Errorf("%v", p), "path", r.URL.Path)
				errorResponse(w, http.StatusInternalServerError, "the server encountered a problem")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
