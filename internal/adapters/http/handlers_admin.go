package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quorasec/iamcore/internal/application"
	"github.com/quorasec/iamcore/internal/domain"
)

type roleChangeRequest struct {
	PrincipalID string `json:"principal_id"`
	Role        string `json:"role"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	h.roleChange(w, r, "assign_role", h.service.AssignRole)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	h.roleChange(w, r, "remove_role", h.service.RemoveRole)
}

func (h *Handler) roleChange(w http.ResponseWriter, r *http.Request, operation string, apply func(ctx context.Context, token string, principalID uuid.UUID, role string) error) {
	var req roleChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}
	principalID, err := uuid.Parse(req.PrincipalID)
	if err != nil || req.Role == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "principal_id and role are required")
		return
	}
	if err := apply(r.Context(), tokenFromContext(r.Context()), principalID, req.Role); err != nil {
		writeServiceError(r.Context(), w, operation, err)
		return
	}
	writeMessage(w, http.StatusOK, "role updated")
}

type roleDefinitionRequest struct {
	Permissions []string `json:"permissions"`
}

func (h *Handler) defineRole(w http.ResponseWriter, r *http.Request) {
	var req roleDefinitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}
	role := chi.URLParam(r, "role")
	if err := h.service.DefineRole(r.Context(), tokenFromContext(r.Context()), role, req.Permissions); err != nil {
		writeServiceError(r.Context(), w, "define_role", err)
		return
	}
	writeMessage(w, http.StatusOK, "role defined")
}

type overrideRequest struct {
	PrincipalID string `json:"principal_id"`
	Permission  string `json:"permission"`
	Effect      string `json:"effect"`
}

func (h *Handler) setOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}
	principalID, err := uuid.Parse(req.PrincipalID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid principal id")
		return
	}

	override := domain.PermissionOverride{
		PrincipalID: principalID,
		Permission:  req.Permission,
		Effect:      domain.GrantEffect(strings.ToUpper(req.Effect)),
	}
	if err := h.service.SetPermissionOverride(r.Context(), tokenFromContext(r.Context()), override); err != nil {
		writeServiceError(r.Context(), w, "set_override", err)
		return
	}
	writeMessage(w, http.StatusOK, "override stored")
}

func (h *Handler) auditEvents(w http.ResponseWriter, r *http.Request) {
	q := application.AuditQuery{
		PrincipalID: r.URL.Query().Get("principal_id"),
		Order:       r.URL.Query().Get("order"),
	}
	if raw := r.URL.Query().Get("types"); raw != "" {
		q.Types = strings.Split(raw, ",")
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "from must be RFC3339")
			return
		}
		q.From = &t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "to must be RFC3339")
			return
		}
		q.To = &t
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		q.Limit, _ = strconv.Atoi(raw)
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		q.Offset, _ = strconv.Atoi(raw)
	}

	items, err := h.service.QueryAuditEvents(r.Context(), tokenFromContext(r.Context()), q)
	if err != nil {
		writeServiceError(r.Context(), w, "audit_events", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"events": items})
}

func (h *Handler) getPolicy(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetPolicy(r.Context(), tokenFromContext(r.Context()))
	if err != nil {
		writeServiceError(r.Context(), w, "get_policy", err)
		return
	}
	writeSuccess(w, http.StatusOK, view)
}

func (h *Handler) updatePolicy(w http.ResponseWriter, r *http.Request) {
	var view application.PolicyView
	if err := json.NewDecoder(r.Body).Decode(&view); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}
	updated, err := h.service.UpdatePolicy(r.Context(), tokenFromContext(r.Context()), view)
	if err != nil {
		writeServiceError(r.Context(), w, "update_policy", err)
		return
	}
	writeSuccess(w, http.StatusOK, updated)
}
