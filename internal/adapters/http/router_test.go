package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quorasec/iamcore/internal/ports"
)

type staticSigner struct{}

func (staticSigner) Sign(ports.AuthClaims) (string, error) { return "", nil }

func (staticSigner) ParseAndValidate(string) (ports.AuthClaims, error) {
	return ports.AuthClaims{}, nil
}

func (staticSigner) PublicJWKs() ([]map[string]any, error) {
	return []map[string]any{{"kty": "RSA", "kid": "test-key"}}, nil
}

func TestRouterHealthAndKeyEndpoints(t *testing.T) {
	t.Parallel()

	handler := NewHandler(nil, staticSigner{}, func(context.Context) error { return nil })
	router := NewRouter(handler)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d, want 200", rec.Code)
	}
	var envelope map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("healthz body not json: %v", err)
	}
	if envelope["status"] != "success" {
		t.Fatalf("unexpected envelope: %v", envelope)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("jwks = %d, want 200", rec.Code)
	}
	var jwks struct {
		Keys []map[string]any `json:"keys"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &jwks); err != nil {
		t.Fatalf("jwks body not json: %v", err)
	}
	if len(jwks.Keys) != 1 || jwks.Keys[0]["kid"] != "test-key" {
		t.Fatalf("unexpected jwks payload: %+v", jwks)
	}
}

func TestRouterReadyzFailure(t *testing.T) {
	t.Parallel()

	handler := NewHandler(nil, staticSigner{}, func(context.Context) error {
		return context.DeadlineExceeded
	})
	router := NewRouter(handler)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz under failing probe = %d, want 503", rec.Code)
	}
}

func TestRouterProtectedRoutesRequireBearer(t *testing.T) {
	t.Parallel()

	handler := NewHandler(nil, staticSigner{}, nil)
	router := NewRouter(handler)

	protected := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/iam/v1/profile"},
		{http.MethodGet, "/iam/v1/sessions"},
		{http.MethodPost, "/iam/v1/permissions/check"},
		{http.MethodGet, "/iam/v1/audit/events"},
		{http.MethodGet, "/iam/v1/config/policy"},
	}
	for _, route := range protected {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(route.method, route.path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s without token = %d, want 401", route.method, route.path, rec.Code)
		}
	}
}
