package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quorasec/iamcore/internal/domain"
)

// PrincipalRepository defines persistence operations for identities.
// Provisioning itself belongs to the upstream directory; this core only reads
// principals and drives their status transitions.
type PrincipalRepository interface {
	GetByUsername(ctx context.Context, username string) (domain.Principal, error)
	GetByID(ctx context.Context, principalID uuid.UUID) (domain.Principal, error)
	SetStatus(ctx context.Context, principalID uuid.UUID, status domain.AccountStatus, updatedAt time.Time) error
	Deactivate(ctx context.Context, principalID uuid.UUID, deactivatedAt time.Time) error
}

// CredentialRepository manages stored password material.
type CredentialRepository interface {
	GetByPrincipal(ctx context.Context, principalID uuid.UUID) (domain.Credential, error)
	Replace(ctx context.Context, cred domain.Credential) error
}

// SessionCreateParams captures metadata required to mint a session record.
// Device and network fields are stored for auditability and risk scoring.
type SessionCreateParams struct {
	PrincipalID    uuid.UUID
	IPAddress      string
	UserAgent      string
	DeviceID       string
	MFAVerified    bool
	RiskScore      float64
	ExpiresAt      time.Time
	LastActivityAt time.Time
}

// SessionRepository manages persistent session lifecycle.
// CreateWithCap must lock at principal granularity: two simultaneous logins
// for one principal must not both slip under the concurrency cap. Evicted
// sessions are chosen oldest-by-last-activity and returned so the caller can
// place revocation markers and audit each eviction.
type SessionRepository interface {
	CreateWithCap(ctx context.Context, params SessionCreateParams, maxConcurrent int) (domain.Session, []domain.Session, error)
	GetByID(ctx context.Context, sessionID uuid.UUID) (domain.Session, error)
	ListActiveByPrincipal(ctx context.Context, principalID uuid.UUID, now time.Time) ([]domain.Session, error)
	TouchActivity(ctx context.Context, sessionID uuid.UUID, touchedAt time.Time) error
	ExtendExpiry(ctx context.Context, sessionID uuid.UUID, expiresAt, touchedAt time.Time) error
	RevokeByID(ctx context.Context, sessionID uuid.UUID, revokedAt time.Time) error
	RevokeAllByPrincipal(ctx context.Context, principalID uuid.UUID, revokedAt time.Time) error
}

// MFARepository controls second-factor enrollment state and verification
// artifacts. Centralizing it prevents split-brain MFA behavior across adapters.
type MFARepository interface {
	ListEnabledMethods(ctx context.Context, principalID uuid.UUID) ([]domain.MFAMethod, error)
	UpsertMethod(ctx context.Context, method domain.MFAMethod) error
	GetTOTPSecret(ctx context.Context, principalID uuid.UUID) (string, error)
	UpsertTOTPSecret(ctx context.Context, principalID uuid.UUID, secret string, updatedAt time.Time) error
	ReplaceBackupCodes(ctx context.Context, principalID uuid.UUID, codeHashes []string, createdAt time.Time) error
	ConsumeBackupCode(ctx context.Context, principalID uuid.UUID, codeHash string, usedAt time.Time) (bool, error)
}

// RBACRepository resolves and mutates role/group/grant state.
// GetPermissionSet computes the full effective set in one round so the
// evaluator never stitches partial views together.
type RBACRepository interface {
	GetPermissionSet(ctx context.Context, principalID uuid.UUID) (domain.PermissionSet, error)
	ListRoleNames(ctx context.Context, principalID uuid.UUID) ([]string, error)
	AssignRole(ctx context.Context, principalID uuid.UUID, roleName string, at time.Time) error
	RemoveRole(ctx context.Context, principalID uuid.UUID, roleName string, at time.Time) error
	UpsertRoleDefinition(ctx context.Context, roleName string, permissions []string, at time.Time) error
	UpsertOverride(ctx context.Context, override domain.PermissionOverride, at time.Time) error
}

// AuditRepository appends immutable events and serves bounded queries.
// Insert writes the event and its outbox mirror in one transaction so
// downstream fan-out can never observe an event that was not durably recorded.
type AuditRepository interface {
	Insert(ctx context.Context, event domain.AuditEvent) error
	Query(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error)
}

// PolicyRepository owns the single administered policy row.
type PolicyRepository interface {
	Get(ctx context.Context) (domain.Policy, error)
	Update(ctx context.Context, policy domain.Policy) error
}

// OutboxRecord represents durable audit-outbox state including retry metadata.
type OutboxRecord struct {
	OutboxID     uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	RetryCount   int
	LastError    *string
	CreatedAt    time.Time
	PublishedAt  *time.Time
	LastErrorAt  *time.Time
}

// OutboxRepository controls the publish-retry workflow for audit fan-out.
// Claim tokens fence concurrent workers without a broker-side lock.
type OutboxRepository interface {
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
