package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/researchportal/pubportal/pkg/auth"
	"github.com/researchportal/pubportal/pkg/contextkeys"
	"github.com/researchportal/pubportal/pkg/httputil"
	"github.com/researchportal/pubportal/pkg/policy"
)

// AuthMiddleware verifies bearer session tokens
type AuthMiddleware struct {
	tokens *auth.TokenManager
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens *auth.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handler rejects requests without a valid "Authorization: Bearer <token>"
// header and stores the caller's AuthContext in the request context
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		claims, err := m.tokens.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				httputil.WriteUnauthorized(w, "session expired")
				return
			}
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ac := &auth.AuthContext{Actor: claims.Actor(), Claims: claims}
		ctx := auth.WithAuthContext(r.Context(), ac)
		ctx = contextkeys.WithUserID(ctx, strconv.FormatInt(claims.UserID, 10))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext extracts the auth context from the request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	return auth.FromContext(r.Context())
}

// ActorFromRequest returns the authenticated actor
func ActorFromRequest(r *http.Request) (policy.Actor, bool) {
	ac := GetAuthContext(r)
	if ac == nil {
		return policy.Actor{}, false
	}
	return ac.Actor, true
}

// RequireRoles lets through only callers holding one of roles
func RequireRoles(roles ...policy.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := GetAuthContext(r)
			if ac == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}
			if !ac.HasRole(roles...) {
				httputil.WriteForbidden(w, "insufficient role permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
