package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter registers the IAM HTTP surface and middleware stack.
// Centralizing routes here keeps auth and error behavior consistent across
// endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	r.Get("/.well-known/jwks.json", handler.jwks)

	r.Route("/iam/v1", func(r chi.Router) {
		r.Post("/auth/login", handler.login)
		r.Post("/auth/mfa/verify", handler.mfaVerify)
		r.Post("/auth/renew", handler.renew)

		r.Group(func(r chi.Router) {
			r.Use(bearerMiddleware)
			r.Post("/auth/logout", handler.logout)
			r.Post("/auth/validate", handler.validate)
			r.Post("/mfa/setup", handler.mfaSetup)
			r.Get("/profile", handler.profile)
			r.Post("/permissions/check", handler.permissionCheck)
			r.Get("/sessions", handler.listSessions)
			r.Delete("/sessions/{session_id}", handler.revokeSession)
			r.Delete("/sessions", handler.revokeAllSessions)

			r.Post("/rbac/roles/assign", handler.assignRole)
			r.Post("/rbac/roles/remove", handler.removeRole)
			r.Put("/rbac/roles/{role}", handler.defineRole)
			r.Put("/rbac/overrides", handler.setOverride)

			r.Get("/audit/events", handler.auditEvents)
			r.Get("/config/policy", handler.getPolicy)
			r.Put("/config/policy", handler.updatePolicy)
		})
	})

	return r
}
