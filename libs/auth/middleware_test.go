package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func principalEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := FromContext(r.Context())
		if !ok {
			_, _ = w.Write([]byte("anonymous"))
			return
		}
		_, _ = w.Write([]byte(p.SeekerID + "/" + p.Role))
	})
}

func TestMiddleware(t *testing.T) {
	secret := "s3cret"
	token, err := SignHS256(testClaims(time.Hour), secret)
	if err != nil {
		t.Fatal(err)
	}
	h := Middleware(NewVerifier(secret, nil), nil)(principalEcho())

	cases := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"anonymous", "", http.StatusOK, "anonymous"},
		{"valid", "Bearer " + token, http.StatusOK, "seeker-1/owner"},
		{"bad scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"bad token", "Bearer not.a.token", http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, rec.Code)
			}
			if tc.body != "" && rec.Body.String() != tc.body {
				t.Fatalf("expected body %q, got %q", tc.body, rec.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(RoleOwner, RoleAdmin)(principalEcho())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", rec.Code)
	}

	for role, code := range map[string]int{RoleAdmin: http.StatusOK, RoleSeeker: http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithPrincipal(req.Context(), Principal{SeekerID: "u", Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != code {
			t.Fatalf("role %s: expected %d, got %d", role, code, rec.Code)
		}
	}
}

func TestResolveTenant(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TenantHeader, "t-header")
	if got, err := ResolveTenant(req); err != nil || got != "t-header" {
		t.Fatalf("header only: got %q, %v", got, err)
	}

	withClaim := req.WithContext(WithPrincipal(req.Context(), Principal{TenantID: "t-claim"}))
	if _, err := ResolveTenant(withClaim); !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}

	withClaim.Header.Del(TenantHeader)
	if got, err := ResolveTenant(withClaim); err != nil || got != "t-claim" {
		t.Fatalf("claim only: got %q, %v", got, err)
	}
}
