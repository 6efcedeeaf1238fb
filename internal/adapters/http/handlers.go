package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quorasec/iamcore/internal/application"
	"github.com/quorasec/iamcore/internal/ports"
)

// Handler is the HTTP adapter entrypoint. It holds only the application
// service plus what the infrastructure endpoints need.
type Handler struct {
	service *application.Service
	signer  ports.TokenSigner
	ready   func(context.Context) error
}

// NewHandler constructs an HTTP handler. ready probes backing stores for
// readyz; a nil probe reports ready unconditionally.
func NewHandler(service *application.Service, signer ports.TokenSigner, ready func(context.Context) error) *Handler {
	return &Handler{service: service, signer: signer, ready: ready}
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", err.Error())
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}

func (h *Handler) jwks(w http.ResponseWriter, r *http.Request) {
	keys, err := h.signer.PublicJWKs()
	if err != nil {
		writeServiceError(r.Context(), w, "jwks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Profile(r.Context(), tokenFromContext(r.Context()))
	if err != nil {
		writeServiceError(r.Context(), w, "profile", err)
		return
	}
	writeSuccess(w, http.StatusOK, summary)
}

func (h *Handler) mfaSetup(w http.ResponseWriter, r *http.Request) {
	var req application.MFASetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}
	resp, err := h.service.SetupMFA(r.Context(), tokenFromContext(r.Context()), req)
	if err != nil {
		writeServiceError(r.Context(), w, "mfa_setup", err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListSessions(r.Context(), tokenFromContext(r.Context()))
	if err != nil {
		writeServiceError(r.Context(), w, "list_sessions", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"sessions": items})
}

func (h *Handler) revokeSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "session_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid session id")
		return
	}
	if err := h.service.RevokeSession(r.Context(), tokenFromContext(r.Context()), sessionID); err != nil {
		writeServiceError(r.Context(), w, "revoke_session", err)
		return
	}
	writeMessage(w, http.StatusOK, "session revoked")
}

func (h *Handler) revokeAllSessions(w http.ResponseWriter, r *http.Request) {
	target := uuid.Nil
	if raw := r.URL.Query().Get("principal_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid principal id")
			return
		}
		target = parsed
	}

	token := tokenFromContext(r.Context())
	if target == uuid.Nil {
		// No explicit target: revoke the caller's own sessions.
		summary, err := h.service.Profile(r.Context(), token)
		if err != nil {
			writeServiceError(r.Context(), w, "revoke_all_sessions", err)
			return
		}
		target = summary.PrincipalID
	}

	count, err := h.service.RevokeAllSessions(r.Context(), token, target)
	if err != nil {
		writeServiceError(r.Context(), w, "revoke_all_sessions", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"revoked_count": count})
}

func (h *Handler) permissionCheck(w http.ResponseWriter, r *http.Request) {
	var req application.PermissionCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}
	resp, err := h.service.CheckPermission(r.Context(), tokenFromContext(r.Context()), req)
	if err != nil {
		writeServiceError(r.Context(), w, "permission_check", err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}
