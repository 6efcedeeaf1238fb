package application_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/quorasec/iamcore/internal/application"
	"github.com/quorasec/iamcore/internal/domain"
	"github.com/quorasec/iamcore/internal/ports"
)

// testClock is a hand-cranked clock shared between the service and the fakes
// that need a notion of now.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakePrincipals struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]domain.Principal
	byName map[string]domain.Principal
}

func (f *fakePrincipals) put(p domain.Principal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[p.PrincipalID] = p
	f.byName[p.Username] = p
}

func (f *fakePrincipals) GetByUsername(_ context.Context, username string) (domain.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byName[username]
	if !ok {
		return domain.Principal{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakePrincipals) GetByID(_ context.Context, id uuid.UUID) (domain.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return domain.Principal{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakePrincipals) SetStatus(_ context.Context, id uuid.UUID, status domain.AccountStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = at
	f.byID[id] = p
	f.byName[p.Username] = p
	return nil
}

func (f *fakePrincipals) Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error {
	return f.SetStatus(ctx, id, domain.StatusSuspended, at)
}

type fakeCredentials struct {
	mu   sync.Mutex
	byID map[uuid.UUID]domain.Credential
}

func (f *fakeCredentials) GetByPrincipal(_ context.Context, id uuid.UUID) (domain.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return domain.Credential{}, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeCredentials) Replace(_ context.Context, cred domain.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[cred.PrincipalID] = cred
	return nil
}

type fakeSessions struct {
	mu   sync.Mutex
	byID map[uuid.UUID]domain.Session
}

func (f *fakeSessions) CreateWithCap(_ context.Context, params ports.SessionCreateParams, maxConcurrent int) (domain.Session, []domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	live := make([]domain.Session, 0)
	for _, s := range f.byID {
		if s.PrincipalID == params.PrincipalID && s.RevokedAt == nil && s.ExpiresAt.After(params.LastActivityAt) {
			live = append(live, s)
		}
	}
	sort.Slice(live, func(i, j int) bool {
		if !live[i].LastActivityAt.Equal(live[j].LastActivityAt) {
			return live[i].LastActivityAt.Before(live[j].LastActivityAt)
		}
		return live[i].SessionID.String() < live[j].SessionID.String()
	})

	var evicted []domain.Session
	if maxConcurrent > 0 && len(live) >= maxConcurrent {
		overflow := len(live) - maxConcurrent + 1
		for _, victim := range live[:overflow] {
			at := params.LastActivityAt
			victim.RevokedAt = &at
			f.byID[victim.SessionID] = victim
			evicted = append(evicted, victim)
		}
	}

	created := domain.Session{
		SessionID:      uuid.New(),
		PrincipalID:    params.PrincipalID,
		IPAddress:      params.IPAddress,
		UserAgent:      params.UserAgent,
		DeviceID:       params.DeviceID,
		MFAVerified:    params.MFAVerified,
		RiskScore:      params.RiskScore,
		CreatedAt:      params.LastActivityAt,
		LastActivityAt: params.LastActivityAt,
		ExpiresAt:      params.ExpiresAt,
	}
	f.byID[created.SessionID] = created
	return created, evicted, nil
}

func (f *fakeSessions) GetByID(_ context.Context, id uuid.UUID) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeSessions) ListActiveByPrincipal(_ context.Context, id uuid.UUID, now time.Time) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Session, 0)
	for _, s := range f.byID {
		if s.PrincipalID == id && s.Live(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivityAt.Before(out[j].LastActivityAt) })
	return out, nil
}

func (f *fakeSessions) TouchActivity(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.LastActivityAt = at
	f.byID[id] = s
	return nil
}

func (f *fakeSessions) ExtendExpiry(_ context.Context, id uuid.UUID, expiresAt, touchedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.ExpiresAt = expiresAt
	s.LastActivityAt = touchedAt
	f.byID[id] = s
	return nil
}

func (f *fakeSessions) RevokeByID(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if s.RevokedAt == nil {
		s.RevokedAt = &at
		f.byID[id] = s
	}
	return nil
}

func (f *fakeSessions) RevokeAllByPrincipal(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sid, s := range f.byID {
		if s.PrincipalID == id && s.RevokedAt == nil {
			s.RevokedAt = &at
			f.byID[sid] = s
		}
	}
	return nil
}

type backupCode struct {
	hash string
	used bool
}

type fakeMFA struct {
	mu      sync.Mutex
	methods map[uuid.UUID][]domain.MFAMethod
	secrets map[uuid.UUID]string
	backups map[uuid.UUID][]backupCode
}

func (f *fakeMFA) ListEnabledMethods(_ context.Context, id uuid.UUID) ([]domain.MFAMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.MFAMethod, 0)
	for _, m := range f.methods[id] {
		if m.Enabled {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (f *fakeMFA) UpsertMethod(_ context.Context, method domain.MFAMethod) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing := f.methods[method.PrincipalID]
	for i, m := range existing {
		if m.Type == method.Type {
			existing[i] = method
			return nil
		}
	}
	f.methods[method.PrincipalID] = append(existing, method)
	return nil
}

func (f *fakeMFA) GetTOTPSecret(_ context.Context, id uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	secret, ok := f.secrets[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return secret, nil
}

func (f *fakeMFA) UpsertTOTPSecret(_ context.Context, id uuid.UUID, secret string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets[id] = secret
	return nil
}

func (f *fakeMFA) ReplaceBackupCodes(_ context.Context, id uuid.UUID, hashes []string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	codes := make([]backupCode, 0, len(hashes))
	for _, h := range hashes {
		codes = append(codes, backupCode{hash: h})
	}
	f.backups[id] = codes
	return nil
}

func (f *fakeMFA) ConsumeBackupCode(_ context.Context, id uuid.UUID, hash string, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.backups[id] {
		if c.hash == hash && !c.used {
			f.backups[id][i].used = true
			return true, nil
		}
	}
	return false, nil
}

type fakeRBAC struct {
	mu        sync.Mutex
	roles     map[uuid.UUID][]string
	roleDefs  map[string][]string
	overrides map[uuid.UUID][]domain.PermissionOverride
}

func (f *fakeRBAC) GetPermissionSet(_ context.Context, id uuid.UUID) (domain.PermissionSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var set domain.PermissionSet
	for _, role := range f.roles[id] {
		set.Allows = append(set.Allows, f.roleDefs[role]...)
	}
	for _, o := range f.overrides[id] {
		if o.Effect == domain.EffectDeny {
			set.Denies = append(set.Denies, o.Permission)
		} else {
			set.Allows = append(set.Allows, o.Permission)
		}
	}
	set.Normalize()
	return set, nil
}

func (f *fakeRBAC) ListRoleNames(_ context.Context, id uuid.UUID) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.roles[id]...)
	sort.Strings(out)
	return out, nil
}

func (f *fakeRBAC) AssignRole(_ context.Context, id uuid.UUID, role string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.roleDefs[role]; !ok {
		return domain.ErrNotFound
	}
	for _, existing := range f.roles[id] {
		if existing == role {
			return nil
		}
	}
	f.roles[id] = append(f.roles[id], role)
	return nil
}

func (f *fakeRBAC) RemoveRole(_ context.Context, id uuid.UUID, role string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.roles[id][:0]
	for _, existing := range f.roles[id] {
		if existing != role {
			kept = append(kept, existing)
		}
	}
	f.roles[id] = kept
	return nil
}

func (f *fakeRBAC) UpsertRoleDefinition(_ context.Context, role string, permissions []string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roleDefs[role] = append([]string(nil), permissions...)
	return nil
}

func (f *fakeRBAC) UpsertOverride(_ context.Context, override domain.PermissionOverride, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing := f.overrides[override.PrincipalID]
	for i, o := range existing {
		if o.Permission == override.Permission {
			existing[i] = override
			return nil
		}
	}
	f.overrides[override.PrincipalID] = append(existing, override)
	return nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (f *fakeAudit) Insert(_ context.Context, event domain.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAudit) Query(_ context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	matched := make([]domain.AuditEvent, 0)
	for _, ev := range f.events {
		if filter.PrincipalID != nil && (ev.PrincipalID == nil || *ev.PrincipalID != *filter.PrincipalID) {
			continue
		}
		if len(filter.Types) > 0 {
			found := false
			for _, t := range filter.Types {
				if ev.Type == t {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if filter.From != nil && ev.OccurredAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && ev.OccurredAt.After(*filter.To) {
			continue
		}
		matched = append(matched, ev)
	}

	sort.Slice(matched, func(i, j int) bool {
		if filter.Descending {
			return matched[i].OccurredAt.After(matched[j].OccurredAt)
		}
		return matched[i].OccurredAt.Before(matched[j].OccurredAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = domain.AuditDefaultPageSize
	}
	if limit > domain.AuditMaxPageSize {
		limit = domain.AuditMaxPageSize
	}
	if filter.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// byType returns recorded events of one type, oldest first.
func (f *fakeAudit) byType(t domain.AuditEventType) []domain.AuditEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AuditEvent, 0)
	for _, ev := range f.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fakePolicy struct {
	mu     sync.Mutex
	policy domain.Policy
}

func (f *fakePolicy) Get(_ context.Context) (domain.Policy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.policy, nil
}

func (f *fakePolicy) Update(_ context.Context, policy domain.Policy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.policy = policy
	return nil
}

type fakeLockouts struct {
	mu    sync.Mutex
	state map[uuid.UUID]domain.LockoutState
}

func (f *fakeLockouts) Get(_ context.Context, id uuid.UUID) (domain.LockoutState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state[id], nil
}

func (f *fakeLockouts) RecordFailure(_ context.Context, id uuid.UUID, now time.Time, threshold int, window, lockoutDuration time.Duration) (domain.LockoutState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.state[id]
	if st.FirstFailureAt == nil || now.Sub(*st.FirstFailureAt) > window {
		first := now
		st = domain.LockoutState{FailedCount: 0, FirstFailureAt: &first}
	}
	st.FailedCount++
	if st.FailedCount >= threshold {
		until := now.Add(lockoutDuration)
		st.LockedUntil = &until
	}
	f.state[id] = st
	return st, nil
}

func (f *fakeLockouts) Clear(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.state, id)
	return nil
}

type fakeChallenges struct {
	mu    sync.Mutex
	items map[string]ports.MFAChallenge
}

func (f *fakeChallenges) Put(_ context.Context, token string, challenge ports.MFAChallenge, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[token] = challenge
	return nil
}

func (f *fakeChallenges) Get(_ context.Context, token string) (*ports.MFAChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[token]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeChallenges) Delete(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, token)
	return nil
}

// single returns the one stored challenge; challenge tokens are stored
// hashed, so tests read the code this way.
func (f *fakeChallenges) single(t *testing.T) ports.MFAChallenge {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.items) != 1 {
		t.Fatalf("expected exactly one stored challenge, have %d", len(f.items))
	}
	for _, c := range f.items {
		return c
	}
	return ports.MFAChallenge{}
}

type fakeRevocations struct {
	mu      sync.Mutex
	revoked map[uuid.UUID]bool
}

func (f *fakeRevocations) MarkRevoked(_ context.Context, id uuid.UUID, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[id] = true
	return nil
}

func (f *fakeRevocations) IsRevoked(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[id], nil
}

type fakePermCache struct {
	mu            sync.Mutex
	items         map[uuid.UUID]domain.PermissionSet
	invalidations int
}

func (f *fakePermCache) Get(_ context.Context, id uuid.UUID) (*domain.PermissionSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	return &set, nil
}

func (f *fakePermCache) Put(_ context.Context, id uuid.UUID, set domain.PermissionSet, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[id] = set
	return nil
}

func (f *fakePermCache) Invalidate(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	f.invalidations++
	return nil
}

func (f *fakePermCache) InvalidateAll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = map[uuid.UUID]domain.PermissionSet{}
	f.invalidations++
	return nil
}

type fakeReplay struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (f *fakeReplay) FirstUse(_ context.Context, key string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

// fakeHasher keeps tests fast; real bcrypt behavior is covered in the
// security adapter tests.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (fakeHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return domain.ErrInvalidCredentials
	}
	return nil
}

type fakeSigner struct {
	mu     sync.Mutex
	clock  *testClock
	tokens map[string]ports.AuthClaims
	serial int
}

func (f *fakeSigner) Sign(claims ports.AuthClaims) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.serial++
	token := fmt.Sprintf("token-%d-%s", f.serial, claims.Kind)
	f.tokens[token] = claims
	return token, nil
}

func (f *fakeSigner) ParseAndValidate(token string) (ports.AuthClaims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claims, ok := f.tokens[token]
	if !ok {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	if !claims.ExpiresAt.After(f.clock.Now()) {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	return claims, nil
}

func (f *fakeSigner) PublicJWKs() ([]map[string]any, error) {
	return []map[string]any{{"kty": "RSA", "kid": "test"}}, nil
}

// fakeTOTP accepts exactly one code per secret so tests can drive both the
// success and failure paths deterministically.
type fakeTOTP struct{}

func (fakeTOTP) GenerateSecret(account string) (ports.TOTPEnrollment, error) {
	secret := "SECRET-" + strings.ToUpper(account)
	return ports.TOTPEnrollment{
		Secret:          secret,
		ProvisioningURI: "otpauth://totp/iamcore:" + account + "?secret=" + secret,
	}, nil
}

func (fakeTOTP) Validate(code, secret string, _ time.Time) (bool, error) {
	return code == "otp-"+secret, nil
}

type fixture struct {
	service     *application.Service
	clock       *testClock
	principals  *fakePrincipals
	credentials *fakeCredentials
	sessions    *fakeSessions
	mfa         *fakeMFA
	rbac        *fakeRBAC
	audit       *fakeAudit
	policyRepo  *fakePolicy
	lockouts    *fakeLockouts
	challenges  *fakeChallenges
	revocations *fakeRevocations
	permCache   *fakePermCache
	replay      *fakeReplay
}

func defaultTestPolicy() domain.Policy {
	return domain.Policy{
		SessionTTL:            8 * time.Hour,
		SlidingRenewal:        false,
		MaxConcurrentSessions: 3,
		MFARequired:           false,
		MaxLoginAttempts:      3,
		FailureWindow:         15 * time.Minute,
		LockoutDuration:       30 * time.Minute,
	}
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithPolicy(t, defaultTestPolicy())
}

func newFixtureWithPolicy(t *testing.T, policy domain.Policy) *fixture {
	t.Helper()

	clock := newTestClock()
	f := &fixture{
		clock:       clock,
		principals:  &fakePrincipals{byID: map[uuid.UUID]domain.Principal{}, byName: map[string]domain.Principal{}},
		credentials: &fakeCredentials{byID: map[uuid.UUID]domain.Credential{}},
		sessions:    &fakeSessions{byID: map[uuid.UUID]domain.Session{}},
		mfa:         &fakeMFA{methods: map[uuid.UUID][]domain.MFAMethod{}, secrets: map[uuid.UUID]string{}, backups: map[uuid.UUID][]backupCode{}},
		rbac:        &fakeRBAC{roles: map[uuid.UUID][]string{}, roleDefs: map[string][]string{}, overrides: map[uuid.UUID][]domain.PermissionOverride{}},
		audit:       &fakeAudit{},
		policyRepo:  &fakePolicy{policy: policy},
		lockouts:    &fakeLockouts{state: map[uuid.UUID]domain.LockoutState{}},
		challenges:  &fakeChallenges{items: map[string]ports.MFAChallenge{}},
		revocations: &fakeRevocations{revoked: map[uuid.UUID]bool{}},
		permCache:   &fakePermCache{items: map[uuid.UUID]domain.PermissionSet{}},
		replay:      &fakeReplay{seen: map[string]bool{}},
	}

	svc, err := application.NewService(context.Background(), application.Config{}, application.Dependencies{
		Principals:  f.principals,
		Credentials: f.credentials,
		Sessions:    f.sessions,
		MFA:         f.mfa,
		RBAC:        f.rbac,
		Audit:       f.audit,
		Policy:      f.policyRepo,
		Lockouts:    f.lockouts,
		Challenges:  f.challenges,
		Revocations: f.revocations,
		PermCache:   f.permCache,
		Replay:      f.replay,
		Hasher:      fakeHasher{},
		Signer:      &fakeSigner{clock: clock, tokens: map[string]ports.AuthClaims{}},
		TOTP:        fakeTOTP{},
		Now:         clock.Now,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	f.service = svc
	return f
}

// addPrincipal seeds an active principal with the given password and roles.
func (f *fixture) addPrincipal(username, password string, roles ...string) uuid.UUID {
	id := uuid.New()
	now := f.clock.Now()
	f.principals.put(domain.Principal{
		PrincipalID: id,
		Username:    username,
		DisplayName: username,
		Email:       username + "@example.com",
		Status:      domain.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	_ = f.credentials.Replace(context.Background(), domain.Credential{
		PrincipalID:   id,
		PasswordHash:  "hashed:" + password,
		HashAlgorithm: "bcrypt",
		UpdatedAt:     now,
	})
	f.rbac.mu.Lock()
	f.rbac.roles[id] = append([]string(nil), roles...)
	f.rbac.mu.Unlock()
	return id
}

func (f *fixture) defineRole(name string, permissions ...string) {
	f.rbac.mu.Lock()
	defer f.rbac.mu.Unlock()
	f.rbac.roleDefs[name] = permissions
}

func (f *fixture) enableMFA(id uuid.UUID, method domain.MFAMethodType, priority int) {
	_ = f.mfa.UpsertMethod(context.Background(), domain.MFAMethod{
		MethodID:    uuid.New(),
		PrincipalID: id,
		Type:        method,
		Enabled:     true,
		Priority:    priority,
	})
}

func (f *fixture) login(t *testing.T, username, password string) application.LoginResponse {
	t.Helper()
	res, err := f.service.Login(context.Background(), application.LoginRequest{
		Username:  username,
		Password:  password,
		IPAddress: "127.0.0.1",
		UserAgent: "unit-test",
	})
	if err != nil {
		t.Fatalf("login %s failed: %v", username, err)
	}
	return res
}
