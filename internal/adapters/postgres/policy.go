package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/quorasec/iamcore/internal/domain"
	"github.com/quorasec/iamcore/internal/ports"
)

// PolicyRepository owns the single auth_policy row.
type PolicyRepository struct {
	db *gorm.DB
}

func NewPolicyRepository(db *gorm.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

func (r *PolicyRepository) Get(ctx context.Context) (domain.Policy, error) {
	var m policyModel
	if err := r.db.WithContext(ctx).Where("policy_id = 1").First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Unseeded database; serve the defaults until an operator writes.
			return domain.DefaultPolicy(), nil
		}
		return domain.Policy{}, fmt.Errorf("load policy: %w", err)
	}
	return domain.Policy{
		SessionTTL:            time.Duration(m.SessionTTLSeconds) * time.Second,
		SlidingRenewal:        m.SlidingRenewal,
		MaxConcurrentSessions: m.MaxConcurrentSessions,
		MFARequired:           m.MFARequired,
		MaxLoginAttempts:      m.MaxLoginAttempts,
		FailureWindow:         time.Duration(m.FailureWindowSeconds) * time.Second,
		LockoutDuration:       time.Duration(m.LockoutSeconds) * time.Second,
		UpdatedAt:             m.UpdatedAt,
	}, nil
}

func (r *PolicyRepository) Update(ctx context.Context, policy domain.Policy) error {
	err := r.db.WithContext(ctx).Exec(`
		INSERT INTO auth_policy (policy_id, session_ttl_seconds, sliding_renewal, max_concurrent_sessions, mfa_required, max_login_attempts, failure_window_seconds, lockout_seconds, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (policy_id) DO UPDATE
		SET session_ttl_seconds = EXCLUDED.session_ttl_seconds,
		    sliding_renewal = EXCLUDED.sliding_renewal,
		    max_concurrent_sessions = EXCLUDED.max_concurrent_sessions,
		    mfa_required = EXCLUDED.mfa_required,
		    max_login_attempts = EXCLUDED.max_login_attempts,
		    failure_window_seconds = EXCLUDED.failure_window_seconds,
		    lockout_seconds = EXCLUDED.lockout_seconds,
		    updated_at = EXCLUDED.updated_at`,
		int64(policy.SessionTTL.Seconds()), policy.SlidingRenewal, policy.MaxConcurrentSessions,
		policy.MFARequired, policy.MaxLoginAttempts, int64(policy.FailureWindow.Seconds()),
		int64(policy.LockoutDuration.Seconds()), policy.UpdatedAt).Error
	if err != nil {
		return fmt.Errorf("update policy: %w", err)
	}
	return nil
}

var _ ports.PolicyRepository = (*PolicyRepository)(nil)
