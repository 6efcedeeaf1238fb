package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/quorasec/iamcore/internal/domain"
)

// Config carries static process-level tuning. Runtime-administered parameters
// (lockout thresholds, session caps) live in domain.Policy instead.
type Config struct {
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	ChallengeTTL       time.Duration
	PermissionCacheTTL time.Duration
	TOTPReplayTTL      time.Duration
	BackupCodeCount    int
}

type LoginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	MFAToken  string `json:"mfa_token,omitempty"`
	DeviceID  string `json:"device_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

type PrincipalSummary struct {
	PrincipalID uuid.UUID            `json:"principal_id"`
	Username    string               `json:"username"`
	DisplayName string               `json:"display_name,omitempty"`
	Email       string               `json:"email,omitempty"`
	Status      domain.AccountStatus `json:"status"`
	Roles       []string             `json:"roles"`
}

type TokenBundle struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type LoginResponse struct {
	MFARequired    bool                   `json:"mfa_required"`
	ChallengeToken string                 `json:"challenge_token,omitempty"`
	Methods        []domain.MFAMethodType `json:"methods,omitempty"`
	Principal      *PrincipalSummary      `json:"principal,omitempty"`
	Tokens         *TokenBundle           `json:"tokens,omitempty"`
	SessionID      uuid.UUID              `json:"session_id,omitempty"`
}

type MFAVerifyRequest struct {
	ChallengeToken string `json:"challenge_token"`
	Method         string `json:"method"`
	Code           string `json:"code"`
	DeviceID       string `json:"device_id,omitempty"`
	IPAddress      string `json:"ip_address,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`
}

type MFASetupRequest struct {
	Method          string `json:"method"`
	Enabled         bool   `json:"enabled"`
	Priority        int    `json:"priority"`
	Destination     string `json:"destination,omitempty"`
	RegistrationRef string `json:"registration_ref,omitempty"`
}

type MFASetupResponse struct {
	Method            domain.MFAMethodType `json:"method"`
	Enabled           bool                 `json:"enabled"`
	Priority          int                  `json:"priority"`
	Secret            string               `json:"secret,omitempty"`
	ProvisioningURI   string               `json:"provisioning_uri,omitempty"`
	BackupCodes       []string             `json:"backup_codes,omitempty"`
	MaskedDestination string               `json:"masked_destination,omitempty"`
	RegistrationRef   string               `json:"registration_ref,omitempty"`
}

type TokenValidation struct {
	PrincipalID uuid.UUID `json:"principal_id"`
	Username    string    `json:"username"`
	Roles       []string  `json:"roles"`
	SessionID   uuid.UUID `json:"session_id"`
	MFAVerified bool      `json:"mfa_verified"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type PermissionCheckRequest struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

type PermissionCheckResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

type SessionItem struct {
	SessionID      uuid.UUID `json:"session_id"`
	IPAddress      string    `json:"ip_address"`
	UserAgent      string    `json:"user_agent"`
	DeviceID       string    `json:"device_id,omitempty"`
	MFAVerified    bool      `json:"mfa_verified"`
	RiskScore      float64   `json:"risk_score"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	IsCurrent      bool      `json:"is_current"`
}

type AuditQuery struct {
	PrincipalID string
	Types       []string
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
	Order       string
}

type AuditEventItem struct {
	EventID     uuid.UUID      `json:"event_id"`
	OccurredAt  time.Time      `json:"occurred_at"`
	PrincipalID *uuid.UUID     `json:"principal_id,omitempty"`
	SessionID   *uuid.UUID     `json:"session_id,omitempty"`
	Type        string         `json:"type"`
	Resource    string         `json:"resource,omitempty"`
	Action      string         `json:"action,omitempty"`
	Result      string         `json:"result"`
	IPAddress   string         `json:"ip_address,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
	Detail      map[string]any `json:"detail,omitempty"`
	RiskScore   float64        `json:"risk_score"`
}

// PolicyView is the wire shape of domain.Policy with durations in seconds,
// so privileged clients do not parse Go duration strings.
type PolicyView struct {
	SessionTTLSeconds      int64     `json:"session_ttl_seconds"`
	SlidingRenewal         bool      `json:"sliding_renewal"`
	MaxConcurrentSessions  int       `json:"max_concurrent_sessions"`
	MFARequired            bool      `json:"mfa_required"`
	MaxLoginAttempts       int       `json:"max_login_attempts"`
	FailureWindowSeconds   int64     `json:"failure_window_seconds"`
	LockoutDurationSeconds int64     `json:"lockout_duration_seconds"`
	UpdatedAt              time.Time `json:"updated_at,omitempty"`
}

func toPolicyView(p domain.Policy) PolicyView {
	return PolicyView{
		SessionTTLSeconds:      int64(p.SessionTTL.Seconds()),
		SlidingRenewal:         p.SlidingRenewal,
		MaxConcurrentSessions:  p.MaxConcurrentSessions,
		MFARequired:            p.MFARequired,
		MaxLoginAttempts:       p.MaxLoginAttempts,
		FailureWindowSeconds:   int64(p.FailureWindow.Seconds()),
		LockoutDurationSeconds: int64(p.LockoutDuration.Seconds()),
		UpdatedAt:              p.UpdatedAt,
	}
}

func (v PolicyView) toDomain() domain.Policy {
	return domain.Policy{
		SessionTTL:            time.Duration(v.SessionTTLSeconds) * time.Second,
		SlidingRenewal:        v.SlidingRenewal,
		MaxConcurrentSessions: v.MaxConcurrentSessions,
		MFARequired:           v.MFARequired,
		MaxLoginAttempts:      v.MaxLoginAttempts,
		FailureWindow:         time.Duration(v.FailureWindowSeconds) * time.Second,
		LockoutDuration:       time.Duration(v.LockoutDurationSeconds) * time.Second,
	}
}

func toSessionItem(s domain.Session, currentSessionID uuid.UUID) SessionItem {
	return SessionItem{
		SessionID:      s.SessionID,
		IPAddress:      s.IPAddress,
		UserAgent:      s.UserAgent,
		DeviceID:       s.DeviceID,
		MFAVerified:    s.MFAVerified,
		RiskScore:      s.RiskScore,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		ExpiresAt:      s.ExpiresAt,
		IsCurrent:      s.SessionID == currentSessionID,
	}
}
