package application

import (
	"context"
	"fmt"
)

// GetPolicy exposes the active policy to privileged clients.
func (s *Service) GetPolicy(ctx context.Context, rawToken string) (PolicyView, error) {
	if _, err := s.requireGrant(ctx, rawToken, "config", "read"); err != nil {
		return PolicyView{}, err
	}
	return toPolicyView(s.Policy()), nil
}

// UpdatePolicy validates, persists and atomically activates a new policy.
// In-flight requests keep the snapshot they started with; the next request
// sees the new one.
func (s *Service) UpdatePolicy(ctx context.Context, rawToken string, view PolicyView) (PolicyView, error) {
	actor, err := s.requireGrant(ctx, rawToken, "config", "manage")
	if err != nil {
		return PolicyView{}, err
	}

	next := view.toDomain()
	if err := next.Validate(); err != nil {
		return PolicyView{}, err
	}

	old := s.Policy()
	next.UpdatedAt = s.now()
	if err := s.policyRepo.Update(ctx, next); err != nil {
		return PolicyView{}, fmt.Errorf("persist policy: %w", err)
	}
	s.policy.Store(&next)

	s.auditConfigChange(ctx, actor, map[string]any{
		"change": "policy_updated",
		"old":    toPolicyView(old),
		"new":    toPolicyView(next),
	})
	s.log.InfoContext(ctx, "policy updated",
		"operation", "UpdatePolicy",
		"session_ttl", next.SessionTTL.String(),
		"max_concurrent_sessions", next.MaxConcurrentSessions,
		"max_login_attempts", next.MaxLoginAttempts)

	return toPolicyView(next), nil
}
