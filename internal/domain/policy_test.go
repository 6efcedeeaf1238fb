package domain

import (
	"testing"
	"time"
)

func TestDefaultPolicyIsValid(t *testing.T) {
	t.Parallel()

	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy must validate: %v", err)
	}
}

func TestPolicyValidateRejectsDisabledProtections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Policy)
	}{
		{"zero session ttl", func(p *Policy) { p.SessionTTL = 0 }},
		{"zero concurrent sessions", func(p *Policy) { p.MaxConcurrentSessions = 0 }},
		{"zero login attempts", func(p *Policy) { p.MaxLoginAttempts = 0 }},
		{"sub-second failure window", func(p *Policy) { p.FailureWindow = time.Millisecond }},
		{"sub-second lockout", func(p *Policy) { p.LockoutDuration = 0 }},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := DefaultPolicy()
			tc.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Fatalf("expected validation failure")
			}
		})
	}
}
