package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quorasec/iamcore/internal/domain"
)

func TestBearerTokenFromHeader(t *testing.T) {
	t.Parallel()

	if tok, err := bearerTokenFromHeader("Bearer abc.def.ghi"); err != nil || tok != "abc.def.ghi" {
		t.Fatalf("expected token, got %q err %v", tok, err)
	}
	for _, header := range []string{"", "Bearer ", "Basic abc", "bearer abc"} {
		if _, err := bearerTokenFromHeader(header); err == nil {
			t.Fatalf("expected rejection of header %q", header)
		}
	}
}

func TestMapDomainError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{domain.ErrInvalidInput, http.StatusBadRequest, "VALIDATION_ERROR"},
		{domain.ErrConfigurationError, http.StatusBadRequest, "CONFIGURATION_ERROR"},
		{domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{domain.ErrMFAVerificationFailed, http.StatusUnauthorized, "MFA_VERIFICATION_FAILED"},
		{domain.ErrAccountLocked, http.StatusTooManyRequests, "ACCOUNT_LOCKED"},
		{domain.ErrSessionExpired, http.StatusUnauthorized, "SESSION_EXPIRED"},
		{domain.ErrSessionRevoked, http.StatusUnauthorized, "SESSION_REVOKED"},
		{domain.ErrPermissionDenied, http.StatusForbidden, "PERMISSION_DENIED"},
		{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{errors.New("database on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		status, code, _ := mapDomainError(tc.err)
		if status != tc.wantStatus || code != tc.wantCode {
			t.Fatalf("mapDomainError(%v) = %d %s, want %d %s", tc.err, status, code, tc.wantStatus, tc.wantCode)
		}
	}

	// Wrapped errors keep their mapping.
	wrapped := fmt.Errorf("login: %w", domain.ErrAccountLocked)
	if status, _, _ := mapDomainError(wrapped); status != http.StatusTooManyRequests {
		t.Fatalf("wrapped lock error lost its mapping")
	}
}

func TestRetryAfterFromError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("%w: retry after %s", domain.ErrAccountLocked, 12*time.Minute)
	d, ok := retryAfterFromError(err)
	if !ok || d != 12*time.Minute {
		t.Fatalf("expected 12m hint, got %v ok=%v", d, ok)
	}

	if _, ok := retryAfterFromError(domain.ErrAccountLocked); ok {
		t.Fatalf("bare error carries no hint")
	}
	if _, ok := retryAfterFromError(errors.New("retry after tomorrow")); ok {
		t.Fatalf("unparseable hint must be ignored")
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	t.Parallel()

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-42")
	requestIDMiddleware(next).ServeHTTP(rec, req)
	if seen != "req-42" {
		t.Fatalf("expected propagated request id, got %q", seen)
	}
	if rec.Header().Get("X-Request-Id") != "req-42" {
		t.Fatalf("request id must echo on the response")
	}

	rec = httptest.NewRecorder()
	requestIDMiddleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestBearerMiddleware(t *testing.T) {
	t.Parallel()

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = tokenFromContext(r.Context())
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	bearerMiddleware(next).ServeHTTP(rec, req)
	if seen != "tok-1" {
		t.Fatalf("expected stashed token, got %q", seen)
	}

	rec = httptest.NewRecorder()
	bearerMiddleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", rec.Code)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	rec := httptest.NewRecorder()
	recoverMiddleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:54321"
	if got := clientIP(req); got != "10.1.2.3" {
		t.Fatalf("expected host from remote addr, got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	if got := clientIP(req); got != "198.51.100.7" {
		t.Fatalf("expected forwarded address, got %q", got)
	}
}
