package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// TenantHeader selects the tenant for anonymous callers.
const TenantHeader = "X-Tenant-Id"

var ErrTenantMismatch = errors.New("tenant header does not match token")

type ctxKey int

const ctxKeyPrincipal ctxKey = iota

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(Principal)
	return p, ok
}

// Middleware authenticates an optional bearer token. Requests without Authorization pass
// through anonymously; a present but invalid token is rejected.
func Middleware(v *Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}
			claims, err := v.Verify(r.Context(), strings.TrimSpace(token))
			if err != nil {
				if logger != nil {
					logger.Debug("bearer token rejected", "err", err)
				}
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), claims.Principal())))
		})
	}
}

// RequireRole rejects anonymous callers with 401 and callers lacking every role with 403.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			if !p.HasRole(roles...) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ResolveTenant picks the tenant from the token claim or the X-Tenant-Id header. When both
// are present they must agree. An empty result means the caller named no tenant.
func ResolveTenant(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get(TenantHeader))
	p, ok := FromContext(r.Context())
	if !ok || p.TenantID == "" {
		return header, nil
	}
	if header != "" && header != p.TenantID {
		return "", ErrTenantMismatch
	}
	return p.TenantID, nil
}
