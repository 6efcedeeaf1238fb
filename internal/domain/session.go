package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session binds a principal to a time-bounded authenticated context.
// The relational store is the source of truth; cache-side revocation markers
// only accelerate the fail-closed validation path.
type Session struct {
	SessionID      uuid.UUID
	PrincipalID    uuid.UUID
	IPAddress      string
	UserAgent      string
	DeviceID       string
	MFAVerified    bool
	RiskScore      float64
	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
	RevokedAt      *time.Time
}

// Live reports whether the session is usable at now. Any revocation or passed
// expiry fails the check regardless of recent activity.
func (s Session) Live(now time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return s.ExpiresAt.After(now)
}
