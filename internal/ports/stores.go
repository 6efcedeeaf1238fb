package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quorasec/iamcore/internal/domain"
)

// LockoutStore handles brute-force protection state at principal granularity.
// RecordFailure must be atomic under concurrent calls for the same principal:
// parallel failed logins may not lose increments.
type LockoutStore interface {
	Get(ctx context.Context, principalID uuid.UUID) (domain.LockoutState, error)
	RecordFailure(ctx context.Context, principalID uuid.UUID, now time.Time, threshold int, window, lockoutDuration time.Duration) (domain.LockoutState, error)
	Clear(ctx context.Context, principalID uuid.UUID) error
}

// MFAChallenge is the short-lived envelope correlating the two halves of a
// split login. It carries the auth context so final session issuance does not
// re-read the principal.
type MFAChallenge struct {
	PrincipalID uuid.UUID              `json:"principal_id"`
	Username    string                 `json:"username"`
	Methods     []domain.MFAMethodType `json:"methods"`
	Code        string                 `json:"code,omitempty"`
	IPAddress   string                 `json:"ip_address"`
	UserAgent   string                 `json:"user_agent"`
	DeviceID    string                 `json:"device_id"`
	IssuedAt    time.Time              `json:"issued_at"`
	ExpiresAt   time.Time              `json:"expires_at"`
}

// MFAChallengeStore persists pending challenges with TTL. An abandoned
// challenge simply expires; no cleanup pass is required.
type MFAChallengeStore interface {
	Put(ctx context.Context, token string, challenge MFAChallenge, ttl time.Duration) error
	Get(ctx context.Context, token string) (*MFAChallenge, error)
	Delete(ctx context.Context, token string) error
}

// SessionRevocationStore keeps revocation markers with token-aligned TTL.
// This gives immediate logout semantics without a store round trip per call.
type SessionRevocationStore interface {
	MarkRevoked(ctx context.Context, sessionID uuid.UUID, expiresAt time.Time) error
	IsRevoked(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

// PermissionCache memoizes resolved permission sets keyed by principal id.
// Every role/group/grant mutation must invalidate the affected principal, or
// flush entirely when the mutation's blast radius is unknown.
type PermissionCache interface {
	Get(ctx context.Context, principalID uuid.UUID) (*domain.PermissionSet, error)
	Put(ctx context.Context, principalID uuid.UUID, set domain.PermissionSet, ttl time.Duration) error
	Invalidate(ctx context.Context, principalID uuid.UUID) error
	InvalidateAll(ctx context.Context) error
}

// ReplayGuard records one-time use of a value. FirstUse returns true exactly
// once per key within the TTL, which is how accepted TOTP codes are fenced
// against replay inside the skew window.
type ReplayGuard interface {
	FirstUse(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
