package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/quorasec/iamcore/internal/domain"
)

// permissionSet returns the effective grants for a principal, cache first.
func (s *Service) permissionSet(ctx context.Context, principalID uuid.UUID) (domain.PermissionSet, error) {
	cached, err := s.permCache.Get(ctx, principalID)
	if err != nil {
		s.log.WarnContext(ctx, "permission cache read failed", "principal_id", principalID, "error", err)
	} else if cached != nil {
		return *cached, nil
	}

	set, err := s.rbac.GetPermissionSet(ctx, principalID)
	if err != nil {
		return domain.PermissionSet{}, fmt.Errorf("load permission set: %w", err)
	}
	set.Normalize()

	if err := s.permCache.Put(ctx, principalID, set, s.cfg.PermissionCacheTTL); err != nil {
		s.log.WarnContext(ctx, "permission cache write failed", "principal_id", principalID, "error", err)
	}
	return set, nil
}

func (s *Service) evaluate(ctx context.Context, principalID uuid.UUID, resource, action string) (domain.Decision, error) {
	set, err := s.permissionSet(ctx, principalID)
	if err != nil {
		return domain.Decision{}, err
	}
	return domain.EvaluatePermission(set, resource, action), nil
}

// CheckPermission evaluates resource/action for the caller and always leaves
// a PERMISSION_CHECK audit record, allowed or not.
func (s *Service) CheckPermission(ctx context.Context, rawToken string, req PermissionCheckRequest) (PermissionCheckResponse, error) {
	if req.Resource == "" || req.Action == "" {
		return PermissionCheckResponse{}, fmt.Errorf("%w: resource and action are required", domain.ErrInvalidInput)
	}

	claims, session, err := s.authorize(ctx, rawToken)
	if err != nil {
		return PermissionCheckResponse{}, err
	}

	decision, err := s.evaluate(ctx, claims.PrincipalID, req.Resource, req.Action)
	if err != nil {
		return PermissionCheckResponse{}, err
	}

	result := "DENIED"
	if decision.Allowed {
		result = "ALLOWED"
	}
	s.recordAudit(ctx, domain.AuditEvent{
		Type:        domain.AuditPermissionCheck,
		PrincipalID: uuidPtr(claims.PrincipalID),
		SessionID:   uuidPtr(session.SessionID),
		Resource:    req.Resource,
		Action:      req.Action,
		Result:      result,
		Detail:      map[string]any{"reason": decision.Reason},
	})

	return PermissionCheckResponse{Allowed: decision.Allowed, Reason: decision.Reason}, nil
}

func (s *Service) requireGrant(ctx context.Context, rawToken, resource, action string) (uuid.UUID, error) {
	claims, _, err := s.authorize(ctx, rawToken)
	if err != nil {
		return uuid.Nil, err
	}
	decision, err := s.evaluate(ctx, claims.PrincipalID, resource, action)
	if err != nil {
		return uuid.Nil, err
	}
	if !decision.Allowed {
		return uuid.Nil, domain.ErrPermissionDenied
	}
	return claims.PrincipalID, nil
}

// AssignRole grants a role to a principal and drops their cached grants.
func (s *Service) AssignRole(ctx context.Context, rawToken string, principalID uuid.UUID, roleName string) error {
	actor, err := s.requireGrant(ctx, rawToken, "rbac", "manage")
	if err != nil {
		return err
	}
	if err := s.rbac.AssignRole(ctx, principalID, roleName, s.now()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: role %q", domain.ErrNotFound, roleName)
		}
		return fmt.Errorf("assign role: %w", err)
	}
	s.invalidateGrants(ctx, principalID)
	s.auditConfigChange(ctx, actor, map[string]any{
		"change":       "role_assigned",
		"principal_id": principalID.String(),
		"role":         roleName,
	})
	return nil
}

// RemoveRole revokes a role from a principal and drops their cached grants.
func (s *Service) RemoveRole(ctx context.Context, rawToken string, principalID uuid.UUID, roleName string) error {
	actor, err := s.requireGrant(ctx, rawToken, "rbac", "manage")
	if err != nil {
		return err
	}
	if err := s.rbac.RemoveRole(ctx, principalID, roleName, s.now()); err != nil {
		return fmt.Errorf("remove role: %w", err)
	}
	s.invalidateGrants(ctx, principalID)
	s.auditConfigChange(ctx, actor, map[string]any{
		"change":       "role_removed",
		"principal_id": principalID.String(),
		"role":         roleName,
	})
	return nil
}

// DefineRole creates or redefines a role's permission list. A role definition
// touches every principal holding the role, directly or through a group, so
// the whole permission cache is flushed rather than chasing the membership.
func (s *Service) DefineRole(ctx context.Context, rawToken string, roleName string, permissions []string) error {
	actor, err := s.requireGrant(ctx, rawToken, "rbac", "manage")
	if err != nil {
		return err
	}
	if roleName == "" {
		return fmt.Errorf("%w: role name is required", domain.ErrInvalidInput)
	}
	for _, p := range permissions {
		if p == "" {
			return fmt.Errorf("%w: empty permission in role definition", domain.ErrInvalidInput)
		}
	}
	if err := s.rbac.UpsertRoleDefinition(ctx, roleName, permissions, s.now()); err != nil {
		return fmt.Errorf("define role: %w", err)
	}
	if err := s.permCache.InvalidateAll(ctx); err != nil {
		s.log.WarnContext(ctx, "permission cache flush failed", "role", roleName, "error", err)
	}
	s.auditConfigChange(ctx, actor, map[string]any{
		"change":      "role_defined",
		"role":        roleName,
		"permissions": permissions,
	})
	return nil
}

// SetPermissionOverride writes a principal-level allow or deny that outranks
// role-derived grants.
func (s *Service) SetPermissionOverride(ctx context.Context, rawToken string, override domain.PermissionOverride) error {
	actor, err := s.requireGrant(ctx, rawToken, "rbac", "manage")
	if err != nil {
		return err
	}
	if override.Effect != domain.EffectAllow && override.Effect != domain.EffectDeny {
		return fmt.Errorf("%w: effect must be ALLOW or DENY", domain.ErrInvalidInput)
	}
	if override.Permission == "" {
		return fmt.Errorf("%w: permission is required", domain.ErrInvalidInput)
	}
	if err := s.rbac.UpsertOverride(ctx, override, s.now()); err != nil {
		return fmt.Errorf("store override: %w", err)
	}
	s.invalidateGrants(ctx, override.PrincipalID)
	s.auditConfigChange(ctx, actor, map[string]any{
		"change":       "permission_override",
		"principal_id": override.PrincipalID.String(),
		"permission":   override.Permission,
		"effect":       override.Effect,
	})
	return nil
}

func (s *Service) invalidateGrants(ctx context.Context, principalID uuid.UUID) {
	if err := s.permCache.Invalidate(ctx, principalID); err != nil {
		s.log.WarnContext(ctx, "permission cache invalidate failed", "principal_id", principalID, "error", err)
	}
}

func (s *Service) auditConfigChange(ctx context.Context, actor uuid.UUID, detail map[string]any) {
	s.recordAudit(ctx, domain.AuditEvent{
		Type:        domain.AuditConfigChange,
		PrincipalID: uuidPtr(actor),
		Detail:      detail,
	})
}
