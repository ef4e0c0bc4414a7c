package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"repairshop-api/internal/authn"
	"repairshop-api/internal/authz"
	"repairshop-api/internal/session"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	sessionKey   contextKey = "session"
)

// AuthMiddleware resolves bearer tokens into principals. Every protected
// request slides the session's expiry as a side effect of the lookup.
type AuthMiddleware struct {
	auth   *authn.RequestAuthenticator
	engine *authz.Engine
}

func NewAuthMiddleware(auth *authn.RequestAuthenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, engine: authz.NewEngine()}
}

// Authenticate rejects requests without a live session. Missing, unknown
// and expired tokens all produce the same 401 response.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)

		s, principal, err := m.auth.TouchSession(r.Context(), token)
		if err != nil {
			if errors.Is(err, authn.ErrSessionInvalid) {
				respondUnauthorized(w)
				return
			}
			respondWithJSON(w, http.StatusInternalServerError, errorResponse("internal error"))
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, principal)
		ctx = context.WithValue(ctx, sessionKey, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission gates an endpoint on a permission that carries no
// per-resource rule. Ownership-scoped checks go through the engine at the
// point where the resource is loaded.
func (m *AuthMiddleware) RequirePermission(perm authz.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				respondUnauthorized(w)
				return
			}
			if decision := m.engine.Authorize(principal, nil, perm); !decision.Allowed {
				respondWithJSON(w, http.StatusForbidden, errorResponse("forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFrom extracts the authenticated principal set by Authenticate.
func PrincipalFrom(ctx context.Context) (authz.Principal, bool) {
	principal, ok := ctx.Value(principalKey).(authz.Principal)
	return principal, ok
}

// SessionFrom extracts the session set by Authenticate.
func SessionFrom(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*session.Session)
	return s, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

// writeRetryAfter surfaces the rate-limit wait as both a header and a
// body field so shell scripts and the UI can read whichever is handy.
func writeRetryAfter(w http.ResponseWriter, seconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	respondWithJSON(w, http.StatusTooManyRequests, Response{
		Success:           false,
		Error:             "too many attempts",
		RetryAfterSeconds: seconds,
	})
}

func respondUnauthorized(w http.ResponseWriter) {
	respondWithJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
}
