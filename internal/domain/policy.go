package domain

import (
	"fmt"
	"time"
)

// Policy holds the runtime-tunable IAM parameters administered over PUT /config.
// A single row backs it; the application keeps an in-process snapshot that is
// swapped atomically after each successful update.
type Policy struct {
	SessionTTL            time.Duration
	SlidingRenewal        bool
	MaxConcurrentSessions int
	MFARequired           bool
	MaxLoginAttempts      int
	FailureWindow         time.Duration
	LockoutDuration       time.Duration
	UpdatedAt             time.Time
}

// DefaultPolicy is the policy applied before any administrative change.
func DefaultPolicy() Policy {
	return Policy{
		SessionTTL:            8 * time.Hour,
		SlidingRenewal:        true,
		MaxConcurrentSessions: 5,
		MFARequired:           false,
		MaxLoginAttempts:      5,
		FailureWindow:         15 * time.Minute,
		LockoutDuration:       30 * time.Minute,
	}
}

// Validate rejects parameter combinations that would disable core protections.
func (p Policy) Validate() error {
	if p.SessionTTL < time.Minute {
		return fmt.Errorf("%w: session ttl must be at least one minute", ErrConfigurationError)
	}
	if p.MaxConcurrentSessions < 1 {
		return fmt.Errorf("%w: max concurrent sessions must be positive", ErrConfigurationError)
	}
	if p.MaxLoginAttempts < 1 {
		return fmt.Errorf("%w: max login attempts must be positive", ErrConfigurationError)
	}
	if p.FailureWindow < time.Second {
		return fmt.Errorf("%w: failure window must be at least one second", ErrConfigurationError)
	}
	if p.LockoutDuration < time.Second {
		return fmt.Errorf("%w: lockout duration must be at least one second", ErrConfigurationError)
	}
	return nil
}
