package middleware

import (
	"context"
	"net/http"
	"strings"

	"propstage/internal/domain"
)

type userContextKey struct{}

// UserKey is the context key holding the authenticated user ID.
var UserKey = userContextKey{}

// UserProvisioner ensures a user record exists for an authenticated identity.
type UserProvisioner interface {
	Upsert(ctx context.Context, user *domain.User) (*domain.User, error)
}

// Auth requires a bearer token identifying the caller. First-time callers are
// provisioned on the free plan with its credit grant.
func Auth(users UserProvisioner) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				http.Error(w, `{"error":"missing or malformed authorization"}`, http.StatusUnauthorized)
				return
			}

			grant, err := domain.PlanGrant(domain.UserPlanFree)
			if err != nil {
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				return
			}
			user := &domain.User{
				ID:      token,
				Plan:    domain.UserPlanFree,
				Credits: grant,
			}
			if _, err := users.Upsert(r.Context(), user); err != nil {
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// UserFromContext returns the authenticated user ID, or empty when absent.
func UserFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(UserKey).(string); ok {
		return v
	}
	return ""
}
