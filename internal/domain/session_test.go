package domain

import (
	"testing"
	"time"
)

func TestSessionLive(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	revoked := now.Add(-time.Minute)

	s := Session{ExpiresAt: now.Add(time.Hour)}
	if !s.Live(now) {
		t.Fatalf("unexpired session should be live")
	}

	s.RevokedAt = &revoked
	if s.Live(now) {
		t.Fatalf("revoked session must not be live")
	}

	s.RevokedAt = nil
	s.ExpiresAt = now
	if s.Live(now) {
		t.Fatalf("expiry boundary must not count as live")
	}
}

func TestLockoutStateWindows(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	until := now.Add(10 * time.Minute)

	var zero LockoutState
	if zero.Locked(now) {
		t.Fatalf("zero state must be unlocked")
	}
	if zero.RetryAfter(now) != 0 {
		t.Fatalf("zero state retry-after must be zero")
	}

	locked := LockoutState{FailedCount: 5, LockedUntil: &until}
	if !locked.Locked(now) {
		t.Fatalf("expected active lock")
	}
	if got := locked.RetryAfter(now); got != 10*time.Minute {
		t.Fatalf("retry-after = %v, want 10m", got)
	}
	if locked.Locked(until) {
		t.Fatalf("lock must release at its deadline")
	}
}
