package postgres

import (
	"time"

	"github.com/google/uuid"
)

type principalModel struct {
	PrincipalID   uuid.UUID  `gorm:"column:principal_id;type:uuid;primaryKey"`
	Username      string     `gorm:"column:username;uniqueIndex"`
	DisplayName   string     `gorm:"column:display_name"`
	Email         string     `gorm:"column:email"`
	Status        string     `gorm:"column:status"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at"`
	DeactivatedAt *time.Time `gorm:"column:deactivated_at"`
}

func (principalModel) TableName() string { return "principals" }

type credentialModel struct {
	PrincipalID   uuid.UUID `gorm:"column:principal_id;type:uuid;primaryKey"`
	PasswordHash  string    `gorm:"column:password_hash"`
	HashAlgorithm string    `gorm:"column:hash_algorithm"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (credentialModel) TableName() string { return "credentials" }

type sessionModel struct {
	SessionID      uuid.UUID  `gorm:"column:session_id;type:uuid;primaryKey"`
	PrincipalID    uuid.UUID  `gorm:"column:principal_id;type:uuid;index"`
	IPAddress      string     `gorm:"column:ip_address"`
	UserAgent      string     `gorm:"column:user_agent"`
	DeviceID       string     `gorm:"column:device_id"`
	MFAVerified    bool       `gorm:"column:mfa_verified"`
	RiskScore      float64    `gorm:"column:risk_score"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	LastActivityAt time.Time  `gorm:"column:last_activity_at"`
	ExpiresAt      time.Time  `gorm:"column:expires_at"`
	RevokedAt      *time.Time `gorm:"column:revoked_at"`
}

func (sessionModel) TableName() string { return "sessions" }

type mfaMethodModel struct {
	MethodID        uuid.UUID `gorm:"column:method_id;type:uuid;primaryKey"`
	PrincipalID     uuid.UUID `gorm:"column:principal_id;type:uuid;index:idx_mfa_principal_type,unique"`
	MethodType      string    `gorm:"column:method_type;index:idx_mfa_principal_type,unique"`
	Enabled         bool      `gorm:"column:enabled"`
	Priority        int       `gorm:"column:priority"`
	Destination     string    `gorm:"column:destination"`
	RegistrationRef string    `gorm:"column:registration_ref"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (mfaMethodModel) TableName() string { return "mfa_methods" }

type totpSecretModel struct {
	PrincipalID uuid.UUID `gorm:"column:principal_id;type:uuid;primaryKey"`
	Secret      string    `gorm:"column:secret"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (totpSecretModel) TableName() string { return "totp_secrets" }

type backupCodeModel struct {
	CodeID      uuid.UUID  `gorm:"column:code_id;type:uuid;primaryKey"`
	PrincipalID uuid.UUID  `gorm:"column:principal_id;type:uuid;index"`
	CodeHash    string     `gorm:"column:code_hash"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UsedAt      *time.Time `gorm:"column:used_at"`
}

func (backupCodeModel) TableName() string { return "backup_codes" }

type roleModel struct {
	RoleID      uuid.UUID `gorm:"column:role_id;type:uuid;primaryKey"`
	Name        string    `gorm:"column:name;uniqueIndex"`
	Description string    `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (roleModel) TableName() string { return "roles" }

type rolePermissionModel struct {
	RoleID     uuid.UUID `gorm:"column:role_id;type:uuid;primaryKey"`
	Permission string    `gorm:"column:permission;primaryKey"`
}

func (rolePermissionModel) TableName() string { return "role_permissions" }

type principalRoleModel struct {
	PrincipalID uuid.UUID `gorm:"column:principal_id;type:uuid;primaryKey"`
	RoleID      uuid.UUID `gorm:"column:role_id;type:uuid;primaryKey"`
	AssignedAt  time.Time `gorm:"column:assigned_at"`
}

func (principalRoleModel) TableName() string { return "principal_roles" }

type groupModel struct {
	GroupID   uuid.UUID `gorm:"column:group_id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (groupModel) TableName() string { return "groups" }

type groupRoleModel struct {
	GroupID uuid.UUID `gorm:"column:group_id;type:uuid;primaryKey"`
	RoleID  uuid.UUID `gorm:"column:role_id;type:uuid;primaryKey"`
}

func (groupRoleModel) TableName() string { return "group_roles" }

type principalGroupModel struct {
	PrincipalID uuid.UUID `gorm:"column:principal_id;type:uuid;primaryKey"`
	GroupID     uuid.UUID `gorm:"column:group_id;type:uuid;primaryKey"`
	JoinedAt    time.Time `gorm:"column:joined_at"`
}

func (principalGroupModel) TableName() string { return "principal_groups" }

type permissionOverrideModel struct {
	PrincipalID uuid.UUID `gorm:"column:principal_id;type:uuid;primaryKey"`
	Permission  string    `gorm:"column:permission;primaryKey"`
	Effect      string    `gorm:"column:effect"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (permissionOverrideModel) TableName() string { return "permission_overrides" }

type auditEventModel struct {
	EventID     uuid.UUID  `gorm:"column:event_id;type:uuid;primaryKey"`
	OccurredAt  time.Time  `gorm:"column:occurred_at;index:idx_audit_occurred"`
	PrincipalID *uuid.UUID `gorm:"column:principal_id;type:uuid;index:idx_audit_principal"`
	SessionID   *uuid.UUID `gorm:"column:session_id;type:uuid"`
	EventType   string     `gorm:"column:event_type;index:idx_audit_type"`
	Resource    string     `gorm:"column:resource"`
	Action      string     `gorm:"column:action"`
	Result      string     `gorm:"column:result"`
	IPAddress   string     `gorm:"column:ip_address"`
	UserAgent   string     `gorm:"column:user_agent"`
	Detail      []byte     `gorm:"column:detail;type:jsonb"`
	RiskScore   float64    `gorm:"column:risk_score"`
}

func (auditEventModel) TableName() string { return "audit_events" }

type outboxModel struct {
	OutboxID     uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload;type:jsonb"`
	RetryCount   int        `gorm:"column:retry_count"`
	LastError    *string    `gorm:"column:last_error"`
	ClaimToken   *string    `gorm:"column:claim_token"`
	ClaimedUntil *time.Time `gorm:"column:claimed_until"`
	CreatedAt    time.Time  `gorm:"column:created_at;index:idx_outbox_created"`
	PublishedAt  *time.Time `gorm:"column:published_at;index:idx_outbox_published"`
	LastErrorAt  *time.Time `gorm:"column:last_error_at"`
	DeadLettered bool       `gorm:"column:dead_lettered"`
}

func (outboxModel) TableName() string { return "audit_outbox" }

type policyModel struct {
	PolicyID              int       `gorm:"column:policy_id;primaryKey"`
	SessionTTLSeconds     int64     `gorm:"column:session_ttl_seconds"`
	SlidingRenewal        bool      `gorm:"column:sliding_renewal"`
	MaxConcurrentSessions int       `gorm:"column:max_concurrent_sessions"`
	MFARequired           bool      `gorm:"column:mfa_required"`
	MaxLoginAttempts      int       `gorm:"column:max_login_attempts"`
	FailureWindowSeconds  int64     `gorm:"column:failure_window_seconds"`
	LockoutSeconds        int64     `gorm:"column:lockout_seconds"`
	UpdatedAt             time.Time `gorm:"column:updated_at"`
}

func (policyModel) TableName() string { return "auth_policy" }
