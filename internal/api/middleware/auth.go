package middleware

import (
	"net/http"
	"strings"

	"github.com/kiranshivaraju/trainhub/internal/api/response"
	"github.com/kiranshivaraju/trainhub/internal/auth"
)

// Auth provides JWT authentication middleware.
type Auth struct {
	validator *auth.Validator
}

// NewAuth creates a new Auth middleware.
func NewAuth(v *auth.Validator) *Auth {
	return &Auth{validator: v}
}

// Authenticate validates the bearer token and sets user_id and email in the
// request context. Browser WebSocket clients cannot set headers, so a token
// query parameter is accepted as a fallback.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		claims, err := a.validator.ValidateToken(token)
		if err != nil {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid or expired token", nil)
			return
		}

		ctx := SetUserID(r.Context(), claims.UserID)
		ctx = setEmail(ctx, claims.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
