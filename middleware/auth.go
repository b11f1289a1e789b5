package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"pactflow/auth"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	holderKey    contextKey = "principal-holder"
)

type principalHolder struct {
	userID string
}

func withHolder(ctx context.Context, h *principalHolder) context.Context {
	return context.WithValue(ctx, holderKey, h)
}

// TokenVerifier turns a bearer token into the principal it was issued to.
type TokenVerifier interface {
	VerifyToken(token string) (auth.Principal, error)
}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated principal, or the zero
// principal when the request was not authenticated.
func PrincipalFromContext(ctx context.Context) auth.Principal {
	p, _ := ctx.Value(principalKey).(auth.Principal)
	return p
}

// Authenticate requires a valid "Authorization: Bearer" token.
func Authenticate(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				WriteError(w, ErrAuthenticationRequired)
				return
			}
			principal, err := verifier.VerifyToken(token)
			if err != nil || principal.Anonymous() {
				slog.Debug("token rejected", slog.Any("error", err))
				WriteError(w, ErrAuthenticationRequired)
				return
			}
			if h, ok := r.Context().Value(holderKey).(*principalHolder); ok {
				h.userID = principal.ID
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}
