package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/quorasec/iamcore/internal/domain"
	"github.com/quorasec/iamcore/internal/ports"
)

// authorize validates an access token against signature, revocation markers
// and the session record. Every check fails closed: a store error denies.
func (s *Service) authorize(ctx context.Context, rawToken string) (ports.AuthClaims, domain.Session, error) {
	claims, err := s.signer.ParseAndValidate(rawToken)
	if err != nil {
		return ports.AuthClaims{}, domain.Session{}, domain.ErrUnauthorized
	}
	if claims.Kind != ports.TokenKindAccess {
		return ports.AuthClaims{}, domain.Session{}, domain.ErrUnauthorized
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.SessionID)
	if err != nil {
		return ports.AuthClaims{}, domain.Session{}, fmt.Errorf("%w: revocation check unavailable", domain.ErrUnauthorized)
	}
	if revoked {
		return ports.AuthClaims{}, domain.Session{}, domain.ErrSessionRevoked
	}

	session, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ports.AuthClaims{}, domain.Session{}, domain.ErrSessionNotFound
		}
		return ports.AuthClaims{}, domain.Session{}, fmt.Errorf("%w: session lookup unavailable", domain.ErrUnauthorized)
	}

	now := s.now()
	if session.RevokedAt != nil {
		return ports.AuthClaims{}, domain.Session{}, domain.ErrSessionRevoked
	}
	if !session.Live(now) {
		return ports.AuthClaims{}, domain.Session{}, domain.ErrSessionExpired
	}
	return claims, session, nil
}

// ValidateToken is the introspection path used by sibling services. On
// success it records activity, which feeds sliding renewal and idle-based
// eviction ordering.
func (s *Service) ValidateToken(ctx context.Context, rawToken string) (TokenValidation, error) {
	claims, session, err := s.authorize(ctx, rawToken)
	if err != nil {
		return TokenValidation{}, err
	}

	now := s.now()
	pol := s.Policy()
	expiresAt := session.ExpiresAt
	if pol.SlidingRenewal {
		extended := now.Add(pol.SessionTTL)
		if extended.After(expiresAt) {
			if err := s.sessions.ExtendExpiry(ctx, session.SessionID, extended, now); err != nil {
				s.log.WarnContext(ctx, "expiry extend failed", "session_id", session.SessionID, "error", err)
			} else {
				expiresAt = extended
			}
		}
	} else if err := s.sessions.TouchActivity(ctx, session.SessionID, now); err != nil {
		s.log.WarnContext(ctx, "activity touch failed", "session_id", session.SessionID, "error", err)
	}

	return TokenValidation{
		PrincipalID: claims.PrincipalID,
		Username:    claims.Username,
		Roles:       claims.Roles,
		SessionID:   session.SessionID,
		MFAVerified: session.MFAVerified,
		ExpiresAt:   expiresAt,
	}, nil
}

// RenewSession exchanges a refresh token for a fresh token pair.
func (s *Service) RenewSession(ctx context.Context, rawRefreshToken string) (TokenBundle, error) {
	claims, err := s.signer.ParseAndValidate(rawRefreshToken)
	if err != nil || claims.Kind != ports.TokenKindRefresh {
		return TokenBundle{}, domain.ErrUnauthorized
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.SessionID)
	if err != nil {
		return TokenBundle{}, fmt.Errorf("%w: revocation check unavailable", domain.ErrUnauthorized)
	}
	if revoked {
		return TokenBundle{}, domain.ErrSessionRevoked
	}

	session, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return TokenBundle{}, domain.ErrSessionNotFound
		}
		return TokenBundle{}, fmt.Errorf("lookup session: %w", err)
	}
	now := s.now()
	if session.RevokedAt != nil {
		return TokenBundle{}, domain.ErrSessionRevoked
	}
	if !session.Live(now) {
		return TokenBundle{}, domain.ErrSessionExpired
	}

	if s.Policy().SlidingRenewal {
		extended := now.Add(s.Policy().SessionTTL)
		if err := s.sessions.ExtendExpiry(ctx, session.SessionID, extended, now); err != nil {
			return TokenBundle{}, fmt.Errorf("extend session: %w", err)
		}
		session.ExpiresAt = extended
	} else if err := s.sessions.TouchActivity(ctx, session.SessionID, now); err != nil {
		s.log.WarnContext(ctx, "activity touch failed", "session_id", session.SessionID, "error", err)
	}

	principal, err := s.principals.GetByID(ctx, claims.PrincipalID)
	if err != nil {
		return TokenBundle{}, fmt.Errorf("lookup principal: %w", err)
	}
	if principal.Status != domain.StatusActive {
		return TokenBundle{}, domain.ErrUnauthorized
	}

	tokens, err := s.mintTokens(principal, s.rolesFor(ctx, principal.PrincipalID), session, session.MFAVerified, now)
	if err != nil {
		return TokenBundle{}, err
	}
	return *tokens, nil
}

// ListSessions returns the caller's live sessions, current one flagged.
func (s *Service) ListSessions(ctx context.Context, rawToken string) ([]SessionItem, error) {
	claims, current, err := s.authorize(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	active, err := s.sessions.ListActiveByPrincipal(ctx, claims.PrincipalID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	items := make([]SessionItem, 0, len(active))
	for _, sess := range active {
		items = append(items, toSessionItem(sess, current.SessionID))
	}
	return items, nil
}

// RevokeSession revokes a single session. Principals may revoke their own;
// revoking someone else's requires the sessions:revoke grant.
func (s *Service) RevokeSession(ctx context.Context, rawToken string, sessionID uuid.UUID) error {
	claims, _, err := s.authorize(ctx, rawToken)
	if err != nil {
		return err
	}

	target, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrSessionNotFound
		}
		return fmt.Errorf("lookup session: %w", err)
	}

	reason := "self_revoke"
	if target.PrincipalID != claims.PrincipalID {
		decision, err := s.evaluate(ctx, claims.PrincipalID, "sessions", "revoke")
		if err != nil {
			return err
		}
		if !decision.Allowed {
			return domain.ErrPermissionDenied
		}
		reason = "admin_revoke"
	}

	now := s.now()
	if target.RevokedAt == nil {
		if err := s.sessions.RevokeByID(ctx, sessionID, now); err != nil {
			return fmt.Errorf("revoke session: %w", err)
		}
	}
	if target.ExpiresAt.After(now) {
		if err := s.revocations.MarkRevoked(ctx, sessionID, target.ExpiresAt); err != nil {
			s.log.WarnContext(ctx, "revocation marker failed", "session_id", sessionID, "error", err)
		}
	}

	s.recordAudit(ctx, domain.AuditEvent{
		Type:        domain.AuditSessionRevoked,
		PrincipalID: uuidPtr(target.PrincipalID),
		SessionID:   uuidPtr(sessionID),
		Detail:      map[string]any{"reason": reason, "revoked_by": claims.PrincipalID.String()},
	})
	return nil
}

// RevokeAllSessions revokes every live session of a principal, including,
// for self-service calls, the session making the request.
func (s *Service) RevokeAllSessions(ctx context.Context, rawToken string, principalID uuid.UUID) (int, error) {
	claims, _, err := s.authorize(ctx, rawToken)
	if err != nil {
		return 0, err
	}

	reason := "self_revoke_all"
	if principalID != claims.PrincipalID {
		decision, err := s.evaluate(ctx, claims.PrincipalID, "sessions", "revoke")
		if err != nil {
			return 0, err
		}
		if !decision.Allowed {
			return 0, domain.ErrPermissionDenied
		}
		reason = "admin_revoke_all"
	}

	now := s.now()
	active, err := s.sessions.ListActiveByPrincipal(ctx, principalID, now)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}
	if err := s.sessions.RevokeAllByPrincipal(ctx, principalID, now); err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	for _, sess := range active {
		if sess.ExpiresAt.After(now) {
			if err := s.revocations.MarkRevoked(ctx, sess.SessionID, sess.ExpiresAt); err != nil {
				s.log.WarnContext(ctx, "revocation marker failed", "session_id", sess.SessionID, "error", err)
			}
		}
		s.recordAudit(ctx, domain.AuditEvent{
			Type:        domain.AuditSessionRevoked,
			PrincipalID: uuidPtr(principalID),
			SessionID:   uuidPtr(sess.SessionID),
			Detail:      map[string]any{"reason": reason, "revoked_by": claims.PrincipalID.String()},
		})
	}
	return len(active), nil
}

// Profile returns the authenticated principal's summary.
func (s *Service) Profile(ctx context.Context, rawToken string) (PrincipalSummary, error) {
	claims, _, err := s.authorize(ctx, rawToken)
	if err != nil {
		return PrincipalSummary{}, err
	}
	principal, err := s.principals.GetByID(ctx, claims.PrincipalID)
	if err != nil {
		return PrincipalSummary{}, fmt.Errorf("lookup principal: %w", err)
	}
	return PrincipalSummary{
		PrincipalID: principal.PrincipalID,
		Username:    principal.Username,
		DisplayName: principal.DisplayName,
		Email:       principal.Email,
		Status:      principal.Status,
		Roles:       s.rolesFor(ctx, principal.PrincipalID),
	}, nil
}
