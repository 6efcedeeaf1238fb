package ports

import (
	"time"

	"github.com/google/uuid"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenKind distinguishes the two halves of the issued token bundle.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

type AuthClaims struct {
	PrincipalID uuid.UUID `json:"principal_id"`
	Username    string    `json:"username"`
	Roles       []string  `json:"roles"`
	SessionID   uuid.UUID `json:"session_id"`
	MFAVerified bool      `json:"mfa_verified"`
	Kind        TokenKind `json:"kind"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	KeyID       string    `json:"kid"`
}

type TokenSigner interface {
	Sign(claims AuthClaims) (string, error)
	ParseAndValidate(token string) (AuthClaims, error)
	PublicJWKs() ([]map[string]any, error)
}

// TOTPEnrollment is the provisioning payload returned once at setup time.
type TOTPEnrollment struct {
	Secret          string
	ProvisioningURI string
}

// TOTPProvider generates and validates time-based one-time codes.
// Validate takes an explicit timestamp so the skew window is testable.
type TOTPProvider interface {
	GenerateSecret(account string) (TOTPEnrollment, error)
	Validate(code, secret string, at time.Time) (bool, error)
}
