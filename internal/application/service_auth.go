package application

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quorasec/iamcore/internal/domain"
	"github.com/quorasec/iamcore/internal/ports"
)

// Login verifies credentials and either issues a session or an MFA challenge.
//
// Ordering matters for both security and cost: the lockout check runs before
// the bcrypt comparison so a locked account cannot be used to burn CPU, and
// unknown usernames are charged a comparison against a throwaway hash so the
// response time does not reveal whether the username exists.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	now := s.now()
	pol := s.Policy()

	principal, err := s.principals.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Equalize timing; no lockout state is created for usernames
			// that do not resolve to a principal.
			_ = s.hasher.Compare(s.dummyHash, req.Password)
			s.recordAudit(ctx, domain.AuditEvent{
				Type:      domain.AuditLoginFailure,
				Result:    "FAILURE",
				IPAddress: req.IPAddress,
				UserAgent: req.UserAgent,
				Detail:    map[string]any{"reason": "unknown_username"},
			})
			return LoginResponse{}, domain.ErrInvalidCredentials
		}
		return LoginResponse{}, fmt.Errorf("lookup principal: %w", err)
	}

	lockout, err := s.lockouts.Get(ctx, principal.PrincipalID)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("read lockout state: %w", err)
	}
	if lockout.Locked(now) {
		s.recordAudit(ctx, domain.AuditEvent{
			Type:        domain.AuditLoginFailure,
			PrincipalID: uuidPtr(principal.PrincipalID),
			Result:      "FAILURE",
			IPAddress:   req.IPAddress,
			UserAgent:   req.UserAgent,
			Detail: map[string]any{
				"reason":              "account_locked",
				"retry_after_seconds": int64(lockout.RetryAfter(now).Seconds()),
			},
		})
		return LoginResponse{}, fmt.Errorf("%w: retry after %s", domain.ErrAccountLocked, lockout.RetryAfter(now))
	}

	switch principal.Status {
	case domain.StatusActive:
	case domain.StatusLocked:
		s.auditLoginFailure(ctx, principal.PrincipalID, req, "status_locked")
		return LoginResponse{}, domain.ErrAccountLocked
	default:
		// Suspended and pending accounts fail closed and look identical to
		// a bad password from the outside.
		_ = s.hasher.Compare(s.dummyHash, req.Password)
		s.auditLoginFailure(ctx, principal.PrincipalID, req, "status_"+string(principal.Status))
		return LoginResponse{}, domain.ErrInvalidCredentials
	}

	cred, err := s.credentials.GetByPrincipal(ctx, principal.PrincipalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = s.hasher.Compare(s.dummyHash, req.Password)
			s.auditLoginFailure(ctx, principal.PrincipalID, req, "no_credential")
			return LoginResponse{}, domain.ErrInvalidCredentials
		}
		return LoginResponse{}, fmt.Errorf("lookup credential: %w", err)
	}

	if err := s.hasher.Compare(cred.PasswordHash, req.Password); err != nil {
		return LoginResponse{}, s.registerFailure(ctx, principal.PrincipalID, req.IPAddress, req.UserAgent, "bad_password", domain.ErrInvalidCredentials)
	}

	methods, err := s.mfa.ListEnabledMethods(ctx, principal.PrincipalID)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("list mfa methods: %w", err)
	}
	if pol.MFARequired || len(methods) > 0 {
		if len(methods) == 0 {
			// Policy demands MFA but the account has none enrolled; the
			// account cannot satisfy the policy, so fail closed.
			s.auditLoginFailure(ctx, principal.PrincipalID, req, "mfa_required_not_enrolled")
			return LoginResponse{}, domain.ErrMFAVerificationFailed
		}
		// The failure counter stays live until the second factor passes:
		// a correct password alone is not a successful login.
		if req.MFAToken != "" {
			return s.verifyInlineMFA(ctx, principal, methods, req, lockout)
		}
		return s.issueChallenge(ctx, principal, methods, req)
	}

	if err := s.lockouts.Clear(ctx, principal.PrincipalID); err != nil {
		s.log.WarnContext(ctx, "lockout clear failed", "principal_id", principal.PrincipalID, "error", err)
	}
	return s.issueSession(ctx, principal, req.IPAddress, req.UserAgent, req.DeviceID, false, lockout)
}

// verifyInlineMFA completes login in one round trip when the request already
// carries a second-factor code. Only factors that verify without a delivered
// challenge qualify; accounts with delivery-based factors alone still get a
// challenge. A bad inline code counts against the lockout window exactly like
// a failed challenge verification.
func (s *Service) verifyInlineMFA(ctx context.Context, principal domain.Principal, methods []domain.MFAMethod, req LoginRequest, lockout domain.LockoutState) (LoginResponse, error) {
	now := s.now()
	synthetic := ports.MFAChallenge{
		PrincipalID: principal.PrincipalID,
		Username:    principal.Username,
	}

	tried := false
	for _, m := range methods {
		if m.Type == domain.MFAMethodSMS || m.Type == domain.MFAMethodEmail {
			continue
		}
		tried = true
		ok, err := s.verifyCode(ctx, synthetic, m.Type, req.MFAToken, now)
		if err != nil {
			return LoginResponse{}, err
		}
		if !ok {
			continue
		}

		if err := s.lockouts.Clear(ctx, principal.PrincipalID); err != nil {
			s.log.WarnContext(ctx, "lockout clear failed", "principal_id", principal.PrincipalID, "error", err)
		}
		s.recordAudit(ctx, domain.AuditEvent{
			Type:        domain.AuditMFASuccess,
			PrincipalID: uuidPtr(principal.PrincipalID),
			IPAddress:   req.IPAddress,
			UserAgent:   req.UserAgent,
			Detail:      map[string]any{"method": m.Type, "inline": true},
		})
		return s.issueSession(ctx, principal, req.IPAddress, req.UserAgent, req.DeviceID, true, lockout)
	}

	if !tried {
		return s.issueChallenge(ctx, principal, methods, req)
	}
	return LoginResponse{}, s.registerFailure(ctx, principal.PrincipalID, req.IPAddress, req.UserAgent, "bad_mfa_code", domain.ErrMFAVerificationFailed)
}

func (s *Service) auditLoginFailure(ctx context.Context, principalID uuid.UUID, req LoginRequest, reason string) {
	s.recordAudit(ctx, domain.AuditEvent{
		Type:        domain.AuditLoginFailure,
		PrincipalID: uuidPtr(principalID),
		Result:      "FAILURE",
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
		Detail:      map[string]any{"reason": reason},
	})
}

// registerFailure counts a failed verification attempt against the sliding
// window and converts the threshold crossing into a lockout.
func (s *Service) registerFailure(ctx context.Context, principalID uuid.UUID, ip, ua, reason string, cause error) error {
	pol := s.Policy()
	state, err := s.lockouts.RecordFailure(ctx, principalID, s.now(), pol.MaxLoginAttempts, pol.FailureWindow, pol.LockoutDuration)
	if err != nil {
		s.log.ErrorContext(ctx, "lockout record failed", "principal_id", principalID, "error", err)
		// Counting failed; still reject the attempt itself.
		state = domain.LockoutState{}
	}

	eventType := domain.AuditLoginFailure
	if reason == "bad_mfa_code" {
		eventType = domain.AuditMFAFailure
	}
	s.recordAudit(ctx, domain.AuditEvent{
		Type:        eventType,
		PrincipalID: uuidPtr(principalID),
		Result:      "FAILURE",
		IPAddress:   ip,
		UserAgent:   ua,
		Detail:      map[string]any{"reason": reason, "failed_count": state.FailedCount},
	})

	if state.Locked(s.now()) {
		s.recordAudit(ctx, domain.AuditEvent{
			Type:        domain.AuditLockout,
			PrincipalID: uuidPtr(principalID),
			Result:      "FAILURE",
			IPAddress:   ip,
			UserAgent:   ua,
			Detail: map[string]any{
				"failed_count":             state.FailedCount,
				"lockout_duration_seconds": int64(pol.LockoutDuration.Seconds()),
			},
		})
		return fmt.Errorf("%w: retry after %s", domain.ErrAccountLocked, state.RetryAfter(s.now()))
	}
	return cause
}

func (s *Service) issueChallenge(ctx context.Context, principal domain.Principal, methods []domain.MFAMethod, req LoginRequest) (LoginResponse, error) {
	now := s.now()
	token, err := randomToken()
	if err != nil {
		return LoginResponse{}, err
	}

	types := make([]domain.MFAMethodType, 0, len(methods))
	needsCode := false
	for _, m := range methods {
		types = append(types, m.Type)
		if m.Type == domain.MFAMethodSMS || m.Type == domain.MFAMethodEmail {
			needsCode = true
		}
	}

	challenge := ports.MFAChallenge{
		PrincipalID: principal.PrincipalID,
		Username:    principal.Username,
		Methods:     types,
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
		DeviceID:    req.DeviceID,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.cfg.ChallengeTTL),
	}
	if needsCode {
		code, err := randomDigits(6)
		if err != nil {
			return LoginResponse{}, err
		}
		challenge.Code = code
		// Delivery of the code over SMS/email is the messaging fabric's
		// job; the published MFA_CHALLENGE event carries the dispatch ref.
	}

	if err := s.challenges.Put(ctx, hashToken(token), challenge, s.cfg.ChallengeTTL); err != nil {
		return LoginResponse{}, fmt.Errorf("store mfa challenge: %w", err)
	}

	s.recordAudit(ctx, domain.AuditEvent{
		Type:        domain.AuditMFAChallenge,
		PrincipalID: uuidPtr(principal.PrincipalID),
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
		Detail:      map[string]any{"methods": types},
	})

	return LoginResponse{
		MFARequired:    true,
		ChallengeToken: token,
		Methods:        types,
	}, nil
}

// VerifyMFA completes a challenge issued by Login. Failed codes count
// against the same lockout window as failed passwords.
func (s *Service) VerifyMFA(ctx context.Context, req MFAVerifyRequest) (LoginResponse, error) {
	now := s.now()

	challenge, err := s.challenges.Get(ctx, hashToken(req.ChallengeToken))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return LoginResponse{}, domain.ErrMFAVerificationFailed
		}
		return LoginResponse{}, fmt.Errorf("load mfa challenge: %w", err)
	}
	if challenge == nil {
		return LoginResponse{}, domain.ErrMFAVerificationFailed
	}
	if !now.Before(challenge.ExpiresAt) {
		_ = s.challenges.Delete(ctx, hashToken(req.ChallengeToken))
		return LoginResponse{}, domain.ErrMFAVerificationFailed
	}

	lockout, err := s.lockouts.Get(ctx, challenge.PrincipalID)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("read lockout state: %w", err)
	}
	if lockout.Locked(now) {
		return LoginResponse{}, fmt.Errorf("%w: retry after %s", domain.ErrAccountLocked, lockout.RetryAfter(now))
	}

	method := domain.MFAMethodType(req.Method)
	offered := false
	for _, m := range challenge.Methods {
		if m == method {
			offered = true
			break
		}
	}
	if !offered {
		return LoginResponse{}, s.registerFailure(ctx, challenge.PrincipalID, req.IPAddress, req.UserAgent, "bad_mfa_code", domain.ErrMFAVerificationFailed)
	}

	ok, err := s.verifyCode(ctx, *challenge, method, req.Code, now)
	if err != nil {
		return LoginResponse{}, err
	}
	if !ok {
		return LoginResponse{}, s.registerFailure(ctx, challenge.PrincipalID, req.IPAddress, req.UserAgent, "bad_mfa_code", domain.ErrMFAVerificationFailed)
	}

	// Single use: the challenge dies with the successful verification.
	if err := s.challenges.Delete(ctx, hashToken(req.ChallengeToken)); err != nil {
		s.log.WarnContext(ctx, "challenge delete failed", "principal_id", challenge.PrincipalID, "error", err)
	}
	if err := s.lockouts.Clear(ctx, challenge.PrincipalID); err != nil {
		s.log.WarnContext(ctx, "lockout clear failed", "principal_id", challenge.PrincipalID, "error", err)
	}

	principal, err := s.principals.GetByID(ctx, challenge.PrincipalID)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("lookup principal: %w", err)
	}
	if principal.Status != domain.StatusActive {
		return LoginResponse{}, domain.ErrInvalidCredentials
	}

	s.recordAudit(ctx, domain.AuditEvent{
		Type:        domain.AuditMFASuccess,
		PrincipalID: uuidPtr(principal.PrincipalID),
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
		Detail:      map[string]any{"method": method},
	})

	ip, ua, dev := req.IPAddress, req.UserAgent, req.DeviceID
	if ip == "" {
		ip = challenge.IPAddress
	}
	if ua == "" {
		ua = challenge.UserAgent
	}
	if dev == "" {
		dev = challenge.DeviceID
	}
	return s.issueSession(ctx, principal, ip, ua, dev, true, lockout)
}

func (s *Service) verifyCode(ctx context.Context, challenge ports.MFAChallenge, method domain.MFAMethodType, code string, now time.Time) (bool, error) {
	switch method {
	case domain.MFAMethodTOTP:
		secret, err := s.mfa.GetTOTPSecret(ctx, challenge.PrincipalID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("load totp secret: %w", err)
		}
		valid, err := s.totp.Validate(code, secret, now)
		if err != nil {
			return false, fmt.Errorf("validate totp: %w", err)
		}
		if !valid {
			return false, nil
		}
		// A valid code is only accepted once per time step.
		fresh, err := s.replay.FirstUse(ctx, "totp:"+challenge.PrincipalID.String()+":"+code, s.cfg.TOTPReplayTTL)
		if err != nil {
			return false, fmt.Errorf("totp replay check: %w", err)
		}
		return fresh, nil
	case domain.MFAMethodSMS, domain.MFAMethodEmail:
		if challenge.Code == "" {
			return false, nil
		}
		return subtle.ConstantTimeCompare([]byte(challenge.Code), []byte(code)) == 1, nil
	case domain.MFAMethodHardwareToken, domain.MFAMethodBiometric:
		// Assertion checking for these factors happens upstream at the
		// credential gateway; a consumed backup code is the fallback here.
		used, err := s.mfa.ConsumeBackupCode(ctx, challenge.PrincipalID, hashToken(code), now)
		if err != nil {
			return false, fmt.Errorf("consume backup code: %w", err)
		}
		return used, nil
	default:
		return false, nil
	}
}

// issueSession creates a session under the concurrency cap, revokes anything
// evicted to make room, and mints the token pair.
func (s *Service) issueSession(ctx context.Context, principal domain.Principal, ip, ua, deviceID string, mfaVerified bool, lockout domain.LockoutState) (LoginResponse, error) {
	now := s.now()
	pol := s.Policy()

	active, err := s.sessions.ListActiveByPrincipal(ctx, principal.PrincipalID, now)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("list active sessions: %w", err)
	}
	risk := s.riskScore(lockout, active, ip, deviceID)

	session, evicted, err := s.sessions.CreateWithCap(ctx, ports.SessionCreateParams{
		PrincipalID:    principal.PrincipalID,
		IPAddress:      ip,
		UserAgent:      ua,
		DeviceID:       deviceID,
		MFAVerified:    mfaVerified,
		RiskScore:      risk,
		ExpiresAt:      now.Add(pol.SessionTTL),
		LastActivityAt: now,
	}, pol.MaxConcurrentSessions)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("create session: %w", err)
	}

	for _, old := range evicted {
		if err := s.revocations.MarkRevoked(ctx, old.SessionID, old.ExpiresAt); err != nil {
			s.log.WarnContext(ctx, "revocation marker failed", "session_id", old.SessionID, "error", err)
		}
		s.recordAudit(ctx, domain.AuditEvent{
			Type:        domain.AuditSessionRevoked,
			PrincipalID: uuidPtr(principal.PrincipalID),
			SessionID:   uuidPtr(old.SessionID),
			Detail:      map[string]any{"reason": "concurrency_cap"},
		})
	}

	roles := s.rolesFor(ctx, principal.PrincipalID)
	tokens, err := s.mintTokens(principal, roles, session, mfaVerified, now)
	if err != nil {
		return LoginResponse{}, err
	}

	s.recordAudit(ctx, domain.AuditEvent{
		Type:        domain.AuditLoginSuccess,
		PrincipalID: uuidPtr(principal.PrincipalID),
		SessionID:   uuidPtr(session.SessionID),
		IPAddress:   ip,
		UserAgent:   ua,
		RiskScore:   risk,
		Detail:      map[string]any{"mfa_verified": mfaVerified},
	})

	return LoginResponse{
		Principal: &PrincipalSummary{
			PrincipalID: principal.PrincipalID,
			Username:    principal.Username,
			DisplayName: principal.DisplayName,
			Email:       principal.Email,
			Status:      principal.Status,
			Roles:       roles,
		},
		Tokens:    tokens,
		SessionID: session.SessionID,
	}, nil
}

func (s *Service) mintTokens(principal domain.Principal, roles []string, session domain.Session, mfaVerified bool, now time.Time) (*TokenBundle, error) {
	accessTTL := s.cfg.AccessTokenTTL
	if remaining := session.ExpiresAt.Sub(now); remaining < accessTTL {
		accessTTL = remaining
	}

	base := ports.AuthClaims{
		PrincipalID: principal.PrincipalID,
		Username:    principal.Username,
		Roles:       roles,
		SessionID:   session.SessionID,
		MFAVerified: mfaVerified,
		IssuedAt:    now,
	}

	access := base
	access.Kind = ports.TokenKindAccess
	access.ExpiresAt = now.Add(accessTTL)
	accessToken, err := s.signer.Sign(access)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh := base
	refresh.Kind = ports.TokenKindRefresh
	refresh.ExpiresAt = now.Add(s.cfg.RefreshTokenTTL)
	refreshToken, err := s.signer.Sign(refresh)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &TokenBundle{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTTL.Seconds()),
	}, nil
}

// Logout revokes the session bound to the presented token. Revoking an
// already-revoked session is not an error.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	claims, err := s.signer.ParseAndValidate(rawToken)
	if err != nil {
		return domain.ErrUnauthorized
	}

	session, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup session: %w", err)
	}

	now := s.now()
	if session.RevokedAt == nil {
		if err := s.sessions.RevokeByID(ctx, session.SessionID, now); err != nil {
			return fmt.Errorf("revoke session: %w", err)
		}
	}
	if session.ExpiresAt.After(now) {
		if err := s.revocations.MarkRevoked(ctx, session.SessionID, session.ExpiresAt); err != nil {
			s.log.WarnContext(ctx, "revocation marker failed", "session_id", session.SessionID, "error", err)
		}
	}

	s.recordAudit(ctx, domain.AuditEvent{
		Type:        domain.AuditLogout,
		PrincipalID: uuidPtr(claims.PrincipalID),
		SessionID:   uuidPtr(session.SessionID),
	})
	return nil
}
