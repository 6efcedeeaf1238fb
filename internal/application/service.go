package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/quorasec/iamcore/internal/domain"
	"github.com/quorasec/iamcore/internal/ports"
)

// Service implements the decision core: credential verification, lockout,
// MFA challenges, session lifecycle, permission evaluation and audit.
// All methods are safe for concurrent use.
type Service struct {
	cfg Config

	principals  ports.PrincipalRepository
	credentials ports.CredentialRepository
	sessions    ports.SessionRepository
	mfa         ports.MFARepository
	rbac        ports.RBACRepository
	audit       ports.AuditRepository
	policyRepo  ports.PolicyRepository

	lockouts    ports.LockoutStore
	challenges  ports.MFAChallengeStore
	revocations ports.SessionRevocationStore
	permCache   ports.PermissionCache
	replay      ports.ReplayGuard

	hasher ports.PasswordHasher
	signer ports.TokenSigner
	totp   ports.TOTPProvider

	// policy holds the active domain.Policy snapshot; writers swap the
	// pointer under policyRepo's row lock so readers never block.
	policy atomic.Pointer[domain.Policy]

	// dummyHash is compared against for unknown usernames so the failure
	// path costs the same as a real bcrypt comparison.
	dummyHash string

	log *slog.Logger
	now func() time.Time
}

type Dependencies struct {
	Principals  ports.PrincipalRepository
	Credentials ports.CredentialRepository
	Sessions    ports.SessionRepository
	MFA         ports.MFARepository
	RBAC        ports.RBACRepository
	Audit       ports.AuditRepository
	Policy      ports.PolicyRepository

	Lockouts    ports.LockoutStore
	Challenges  ports.MFAChallengeStore
	Revocations ports.SessionRevocationStore
	PermCache   ports.PermissionCache
	Replay      ports.ReplayGuard

	Hasher ports.PasswordHasher
	Signer ports.TokenSigner
	TOTP   ports.TOTPProvider

	Logger *slog.Logger
	Now    func() time.Time
}

func NewService(ctx context.Context, cfg Config, deps Dependencies) (*Service, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 15 * time.Minute
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = 24 * time.Hour
	}
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = 5 * time.Minute
	}
	if cfg.PermissionCacheTTL <= 0 {
		cfg.PermissionCacheTTL = 5 * time.Minute
	}
	if cfg.TOTPReplayTTL <= 0 {
		cfg.TOTPReplayTTL = 90 * time.Second
	}
	if cfg.BackupCodeCount <= 0 {
		cfg.BackupCodeCount = 10
	}

	dummy, err := deps.Hasher.Hash("iamcore-dummy-" + uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	s := &Service{
		cfg:         cfg,
		principals:  deps.Principals,
		credentials: deps.Credentials,
		sessions:    deps.Sessions,
		mfa:         deps.MFA,
		rbac:        deps.RBAC,
		audit:       deps.Audit,
		policyRepo:  deps.Policy,
		lockouts:    deps.Lockouts,
		challenges:  deps.Challenges,
		revocations: deps.Revocations,
		permCache:   deps.PermCache,
		replay:      deps.Replay,
		hasher:      deps.Hasher,
		signer:      deps.Signer,
		totp:        deps.TOTP,
		dummyHash:   dummy,
		log:         deps.Logger.With("module", "iam", "layer", "application"),
		now:         deps.Now,
	}

	pol, err := deps.Policy.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	s.policy.Store(&pol)
	return s, nil
}

// Policy returns the active policy snapshot.
func (s *Service) Policy() domain.Policy {
	return *s.policy.Load()
}

// recordAudit persists an audit event. Audit writes are best-effort for the
// hot path: a storage failure is logged and surfaced to metrics via the
// outbox, but never fails the authentication decision that triggered it.
func (s *Service) recordAudit(ctx context.Context, ev domain.AuditEvent) {
	if ev.EventID == uuid.Nil {
		ev.EventID = uuid.New()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now()
	}
	if ev.Result == "" {
		ev.Result = "SUCCESS"
	}
	if err := s.audit.Insert(ctx, ev); err != nil {
		s.log.ErrorContext(ctx, "audit write failed",
			"operation", "recordAudit",
			"event_type", ev.Type,
			"error", err)
	}
}

func (s *Service) rolesFor(ctx context.Context, principalID uuid.UUID) []string {
	roles, err := s.rbac.ListRoleNames(ctx, principalID)
	if err != nil {
		s.log.WarnContext(ctx, "role lookup failed", "principal_id", principalID, "error", err)
		return nil
	}
	return roles
}

// riskScore is a coarse heuristic over context signals; it never blocks a
// login on its own, only annotates the session and audit trail.
func (s *Service) riskScore(lockout domain.LockoutState, known []domain.Session, ip, deviceID string) float64 {
	score := 0.0
	if lockout.FailedCount > 0 {
		score += 0.1 * float64(lockout.FailedCount)
	}
	if ip != "" && len(known) > 0 {
		seen := false
		for _, sess := range known {
			if sess.IPAddress == ip {
				seen = true
				break
			}
		}
		if !seen {
			score += 0.2
		}
	}
	if deviceID == "" {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func randomDigits(n int) (string, error) {
	const digits = "0123456789"
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i := range buf {
		buf[i] = digits[int(buf[i])%len(digits)]
	}
	return string(buf), nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// hashToken derives the storage key for opaque tokens so the raw value never
// reaches Redis or Postgres.
func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// maskDestination hides most of a phone number or email for display.
func maskDestination(dest string) string {
	if at := strings.IndexByte(dest, '@'); at > 0 {
		local := dest[:at]
		if len(local) <= 2 {
			return strings.Repeat("*", len(local)) + dest[at:]
		}
		return local[:1] + strings.Repeat("*", len(local)-2) + local[len(local)-1:] + dest[at:]
	}
	if len(dest) <= 4 {
		return strings.Repeat("*", len(dest))
	}
	return strings.Repeat("*", len(dest)-4) + dest[len(dest)-4:]
}

func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }
