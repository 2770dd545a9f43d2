package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/addisride/dispatch/internal/domain/models"
	"github.com/addisride/dispatch/internal/domain/types"
	wrap "github.com/addisride/dispatch/pkg/logger/wrapper"
)

// Auth validates the bearer token, loads the user and injects it into the
// request context. Requests without an Authorization header pass through
// anonymously; protected endpoints reject them via RequireRoles.
func (m *Middleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(header)
		if err != nil {
			errorResponse(w, http.StatusUnauthorized, err.Error())
			return
		}

		user, err := m.auth.Authenticate(ctx, token)
		if err != nil {
			m.log.Warn(wrap.ErrorCtx(ctx, err), "failed to authenticate user", "err", err.Error())
			errorResponse(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		ctx = wrap.WithUserID(ctx, user.ID.String())
		next.ServeHTTP(w, r.WithContext(models.ContextSetUser(ctx, user)))
	})
}

// RequireRoles wraps a handler and allows only users with one of the given roles.
func (m *Middleware) RequireRoles(next http.HandlerFunc, allowedRoles ...types.UserRole) http.Handler {
	allowed := make(map[types.UserRole]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		allowed[role] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := models.ContextGetUser(r.Context())
		if !ok {
			errorResponse(w, http.StatusUnauthorized, "authorization required")
			return
		}
		if len(allowed) > 0 {
			if _, ok := allowed[user.Role]; !ok {
				errorResponse(w, http.StatusForbidden, "forbidden: insufficient role")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	return parts[1], nil
}
