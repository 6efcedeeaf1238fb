package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountStatus is the lifecycle state of a principal. Principals are never
// deleted, only deactivated, so status transitions are the whole story.
type AccountStatus string

const (
	StatusActive    AccountStatus = "ACTIVE"
	StatusSuspended AccountStatus = "SUSPENDED"
	StatusLocked    AccountStatus = "LOCKED"
	StatusPending   AccountStatus = "PENDING"
)

// Principal is the canonical identity aggregate of the IAM core.
// Credential material lives in a separate Credential record so the principal
// can be handed to callers without ever carrying a hash.
type Principal struct {
	PrincipalID   uuid.UUID
	Username      string
	DisplayName   string
	Email         string
	Status        AccountStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeactivatedAt *time.Time
}

// Credential is the stored password artifact for a principal. It is replaced
// wholesale on password change and never read back unhashed.
type Credential struct {
	PrincipalID   uuid.UUID
	PasswordHash  string
	HashAlgorithm string
	UpdatedAt     time.Time
}

// MFAMethodType enumerates supported second factors.
type MFAMethodType string

const (
	MFAMethodTOTP          MFAMethodType = "TOTP"
	MFAMethodSMS           MFAMethodType = "SMS"
	MFAMethodEmail         MFAMethodType = "EMAIL"
	MFAMethodHardwareToken MFAMethodType = "HARDWARE_TOKEN"
	MFAMethodBiometric     MFAMethodType = "BIOMETRIC"
)

// ValidMFAMethodType reports whether raw names a supported method type.
func ValidMFAMethodType(raw MFAMethodType) bool {
	switch raw {
	case MFAMethodTOTP, MFAMethodSMS, MFAMethodEmail, MFAMethodHardwareToken, MFAMethodBiometric:
		return true
	default:
		return false
	}
}

// MFAMethod is an enrolled second factor owned by a principal.
// Lower priority is tried first. Destination holds the phone number or email
// for SMS/EMAIL; RegistrationRef holds the token/biometric registration id.
type MFAMethod struct {
	MethodID        uuid.UUID
	PrincipalID     uuid.UUID
	Type            MFAMethodType
	Enabled         bool
	Priority        int
	Destination     string
	RegistrationRef string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LockoutState is the failure-tracking envelope for one principal.
// Exactly one exists per principal; a zero value means no recorded failures.
type LockoutState struct {
	FailedCount    int
	FirstFailureAt *time.Time
	LockedUntil    *time.Time
}

// Locked reports whether the state holds a lock that is still in force at now.
func (s LockoutState) Locked(now time.Time) bool {
	return s.LockedUntil != nil && s.LockedUntil.After(now)
}

// RetryAfter returns the remaining lock duration at now, zero when unlocked.
func (s LockoutState) RetryAfter(now time.Time) time.Duration {
	if !s.Locked(now) {
		return 0
	}
	return s.LockedUntil.Sub(now)
}
