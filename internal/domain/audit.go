package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEventType enumerates the security-relevant actions this core records.
type AuditEventType string

const (
	AuditLoginSuccess    AuditEventType = "LOGIN_SUCCESS"
	AuditLoginFailure    AuditEventType = "LOGIN_FAILURE"
	AuditLockout         AuditEventType = "LOCKOUT"
	AuditMFAChallenge    AuditEventType = "MFA_CHALLENGE"
	AuditMFASuccess      AuditEventType = "MFA_SUCCESS"
	AuditMFAFailure      AuditEventType = "MFA_FAILURE"
	AuditMFASetup        AuditEventType = "MFA_SETUP"
	AuditLogout          AuditEventType = "LOGOUT"
	AuditSessionRevoked  AuditEventType = "SESSION_REVOKED"
	AuditPermissionCheck AuditEventType = "PERMISSION_CHECK"
	AuditConfigChange    AuditEventType = "CONFIG_CHANGE"
	AuditPasswordChange  AuditEventType = "PASSWORD_CHANGE"
)

// AuditEvent is an immutable record of one security-relevant action.
// PrincipalID is nil for anonymous failures (unknown username); SessionID is
// nil for everything before a session exists.
type AuditEvent struct {
	EventID     uuid.UUID
	OccurredAt  time.Time
	PrincipalID *uuid.UUID
	SessionID   *uuid.UUID
	Type        AuditEventType
	Resource    string
	Action      string
	Result      string
	IPAddress   string
	UserAgent   string
	Detail      map[string]any
	RiskScore   float64
}

// AuditFilter bounds an audit query. A zero Limit falls back to the default
// page size; Limit is clamped to the maximum by the query path.
type AuditFilter struct {
	PrincipalID *uuid.UUID
	Types       []AuditEventType
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
	Descending  bool
}

const (
	AuditDefaultPageSize = 50
	AuditMaxPageSize     = 200
)
